package domain

import "time"

// Config is the resolved project configuration.
type Config struct {
	Registry     RegistryConfig
	Cache        CacheConfig
	LockfilePath string
	LogLevel     string

	// Agents and Tools are the top-level requirements as name specs.
	Agents []string
	Tools  []string
}

// RegistryConfig configures the source providers.
type RegistryConfig struct {
	LocalEnabled  bool
	LocalPath     string
	GlobalEnabled bool
	GlobalPath    string
	RemoteEnabled bool
	RemoteURL     string
	RemoteTimeout time.Duration
}

// CacheConfig configures the content cache.
type CacheConfig struct {
	Enabled bool
	// DefaultTTL applies to file, glob and external sources.
	DefaultTTL time.Duration
	// InlineTTL applies to inline sources; NoExpiry by default.
	InlineTTL time.Duration
	// FetchBaseURL is where external references are fetched from. Empty disables the fetcher.
	FetchBaseURL string
}

// Requirements returns the configured top-level requirements, agents first.
func (c *Config) Requirements() []Requirement {
	reqs := make([]Requirement, 0, len(c.Agents)+len(c.Tools))
	for _, spec := range c.Agents {
		reqs = append(reqs, Requirement{Type: TypeAgent, Spec: spec})
	}
	for _, spec := range c.Tools {
		reqs = append(reqs, Requirement{Type: TypeTool, Spec: spec})
	}
	return reqs
}
