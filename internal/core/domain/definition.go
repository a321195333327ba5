// Package domain contains the core domain models for definition resolution, locking and caching.
package domain

import (
	"strconv"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// DefinitionType distinguishes agents from tools.
type DefinitionType string

const (
	// TypeAgent identifies agent definitions.
	TypeAgent DefinitionType = "agent"
	// TypeTool identifies tool definitions.
	TypeTool DefinitionType = "tool"
)

// DefinitionTypes lists all definition types in lockfile order.
var DefinitionTypes = []DefinitionType{TypeAgent, TypeTool}

// ParseDefinitionType converts a string to a DefinitionType.
func ParseDefinitionType(s string) (DefinitionType, error) {
	switch DefinitionType(strings.ToLower(s)) {
	case TypeAgent:
		return TypeAgent, nil
	case TypeTool:
		return TypeTool, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidDefinitionType, "unknown type "+strconv.Quote(s)), "type", s)
	}
}

// Plural returns the directory name used for the type in registries ("agents", "tools").
func (t DefinitionType) Plural() string {
	return string(t) + "s"
}

func (t DefinitionType) String() string {
	return string(t)
}

// SourceKind names the provider a definition came from.
type SourceKind string

const (
	// SourceLocal is the project registry (./.forge).
	SourceLocal SourceKind = "local"
	// SourceGlobal is the user-wide registry (~/.forge/registry).
	SourceGlobal SourceKind = "global"
	// SourceStockyard is the remote catalog service.
	SourceStockyard SourceKind = "stockyard"
)

func (k SourceKind) String() string {
	return string(k)
}

// ParseSourceKind converts a string to a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(s)); k {
	case SourceLocal, SourceGlobal, SourceStockyard:
		return k, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidSource, "unknown source "+strconv.Quote(s)), "source", s)
	}
}

// LatestRange is the implicit range when a name spec carries none.
const LatestRange = "latest"

// DefinitionIdentifier is a parsed name spec.
type DefinitionIdentifier struct {
	Name  string
	Range string
}

// ParseIdentifier splits "name" or "name@range" into its parts.
// A missing range defaults to "latest".
func ParseIdentifier(spec string) (DefinitionIdentifier, error) {
	spec = strings.TrimSpace(spec)
	name, rng, found := strings.Cut(spec, "@")
	name = strings.TrimSpace(name)
	rng = strings.TrimSpace(rng)

	if name == "" {
		return DefinitionIdentifier{}, zerr.With(zerr.Wrap(ErrInvalidIdentifier, "empty name"), "spec", spec)
	}
	if found && rng == "" {
		return DefinitionIdentifier{}, zerr.With(zerr.Wrap(ErrInvalidIdentifier, "empty range after @"), "spec", spec)
	}
	if rng == "" {
		rng = LatestRange
	}

	return DefinitionIdentifier{Name: name, Range: rng}, nil
}

// String renders the identifier back into name@range form.
func (id DefinitionIdentifier) String() string {
	return id.Name + "@" + id.Range
}

// Dependencies holds the ordered name specs a definition requires.
type Dependencies struct {
	Agents []string `yaml:"agents,omitempty" json:"agents,omitempty"`
	Tools  []string `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// Definition is a validated agent or tool definition document.
type Definition struct {
	Name         string         `yaml:"name" json:"name"`
	Version      string         `yaml:"version" json:"version"`
	Type         DefinitionType `yaml:"type" json:"type"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string         `yaml:"author,omitempty" json:"author,omitempty"`
	Tags         []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Dependencies Dependencies   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	CacheSources []CacheSource  `yaml:"cache_sources,omitempty" json:"cache_sources,omitempty"`

	// Raw holds the exact bytes the definition was loaded from.
	Raw []byte `yaml:"-" json:"-"`
}

// DependencySpecs returns all dependency specs tagged with their type, agents first.
func (d *Definition) DependencySpecs() []Requirement {
	reqs := make([]Requirement, 0, len(d.Dependencies.Agents)+len(d.Dependencies.Tools))
	for _, spec := range d.Dependencies.Agents {
		reqs = append(reqs, Requirement{Type: TypeAgent, Spec: spec})
	}
	for _, spec := range d.Dependencies.Tools {
		reqs = append(reqs, Requirement{Type: TypeTool, Spec: spec})
	}
	return reqs
}

// Requirement is a typed name spec, as listed in configuration or a definition's dependencies.
type Requirement struct {
	Type DefinitionType
	Spec string
}

// VersionLocation is a version a provider can supply, with a provider-specific location.
type VersionLocation struct {
	Version  string
	Location string
}

// ResolvedDefinition is a definition bound to one exact version and one source.
type ResolvedDefinition struct {
	Definition   *Definition
	ExactVersion string
	Source       SourceKind
	ResolvedAt   time.Time
	Location     string
	Checksum     string
}

// Name returns the resolved definition name.
func (r *ResolvedDefinition) Name() string {
	return r.Definition.Name
}

// Type returns the resolved definition type.
func (r *ResolvedDefinition) Type() DefinitionType {
	return r.Definition.Type
}

// AvailableDefinition summarizes one definition listed by the providers.
type AvailableDefinition struct {
	Name     string
	Type     DefinitionType
	Versions []string
	Sources  []SourceKind
}

// DefinitionInfo describes a resolved definition together with every version
// the providers currently offer.
type DefinitionInfo struct {
	Resolved          *ResolvedDefinition
	AvailableVersions []string
}
