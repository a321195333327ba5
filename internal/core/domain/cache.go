package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// CacheSourceType is the discriminator for content cache sources.
type CacheSourceType string

const (
	// CacheSourceFile reads a single file.
	CacheSourceFile CacheSourceType = "file"
	// CacheSourceGlob concatenates every file matching a pattern.
	CacheSourceGlob CacheSourceType = "glob"
	// CacheSourceExternal fetches a scheme://org/project/path reference.
	CacheSourceExternal CacheSourceType = "external"
	// CacheSourceInline returns literal content.
	CacheSourceInline CacheSourceType = "inline"
)

// CacheSource declares content a definition wants materialized.
type CacheSource struct {
	Type        CacheSourceType `yaml:"type" json:"type"`
	Label       string          `yaml:"label,omitempty" json:"label,omitempty"`
	Path        string          `yaml:"path,omitempty" json:"path,omitempty"`
	Pattern     string          `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	URI         string          `yaml:"uri,omitempty" json:"uri,omitempty"`
	Content     string          `yaml:"content,omitempty" json:"content,omitempty"`
	TTL         int             `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	NeverExpire bool            `yaml:"never_expire,omitempty" json:"never_expire,omitempty"`
}

// NoExpiry marks cache entries that never expire.
const NoExpiry time.Duration = -1

// CacheEntry is one materialized content body.
type CacheEntry struct {
	Content  string
	LoadedAt time.Time
	TTL      time.Duration
	Source   string
}

// Expired reports whether the entry is stale at now.
// Finite entries expire exactly when now - LoadedAt > TTL.
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTL == NoExpiry {
		return false
	}
	return now.Sub(e.LoadedAt) > e.TTL
}

// ExternalReference is a parsed scheme://org/project/path URI.
type ExternalReference struct {
	Scheme  string
	Org     string
	Project string
	Path    string
}

func (r ExternalReference) String() string {
	return r.Scheme + "://" + r.Org + "/" + r.Project + "/" + r.Path
}

// ParseReference parses a scheme://org/project/path URI. Every part must be non-empty.
func ParseReference(uri string) (ExternalReference, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return ExternalReference{}, Annotate(ErrInvalidReference, "uri", uri)
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return ExternalReference{}, zerr.With(zerr.Wrap(ErrInvalidReference, "missing org, project or path"), "uri", uri)
	}
	return ExternalReference{Scheme: scheme, Org: parts[0], Project: parts[1], Path: parts[2]}, nil
}
