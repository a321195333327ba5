package resolver_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// memProvider serves definitions from memory. Content is "type:name:version".
type memProvider struct {
	kind     domain.SourceKind
	versions map[string][]string

	mu    sync.Mutex
	lists int
}

func newMemProvider(kind domain.SourceKind, versions map[string][]string) *memProvider {
	return &memProvider{kind: kind, versions: versions}
}

func (p *memProvider) Kind() domain.SourceKind { return p.kind }

func (p *memProvider) ListVersions(_ context.Context, typ domain.DefinitionType, name string) ([]domain.VersionLocation, error) {
	p.mu.Lock()
	p.lists++
	p.mu.Unlock()

	out := make([]domain.VersionLocation, 0, len(p.versions[name]))
	for _, v := range p.versions[name] {
		out = append(out, domain.VersionLocation{Version: v, Location: p.location(typ, name, v)})
	}
	return out, nil
}

func (p *memProvider) Open(_ context.Context, typ domain.DefinitionType, name, version string) ([]byte, string, error) {
	for _, v := range p.versions[name] {
		if v == version {
			return []byte(string(typ) + ":" + name + ":" + version), p.location(typ, name, version), nil
		}
	}
	return nil, "", zerr.With(domain.ErrNotFound, "version", version)
}

func (p *memProvider) List(_ context.Context, typ domain.DefinitionType) ([]domain.AvailableDefinition, error) {
	out := make([]domain.AvailableDefinition, 0, len(p.versions))
	for name, versions := range p.versions {
		out = append(out, domain.AvailableDefinition{Name: name, Type: typ, Versions: versions})
	}
	return out, nil
}

func (p *memProvider) listCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lists
}

func (p *memProvider) location(typ domain.DefinitionType, name, version string) string {
	return string(p.kind) + "/" + typ.Plural() + "/" + name + "/" + version
}

// countingLoader parses "type:name:version" content and counts calls.
type countingLoader struct {
	calls atomic.Int32
}

func (l *countingLoader) Load(content []byte, origin string) (*ports.RawDefinition, error) {
	l.calls.Add(1)
	parts := strings.SplitN(string(content), ":", 3)
	if len(parts) != 3 {
		return nil, zerr.With(domain.ErrDefinitionParse, "origin", origin)
	}
	return &ports.RawDefinition{
		Document: map[string]any{"type": parts[0], "name": parts[1], "version": parts[2]},
		Content:  content,
		Origin:   origin,
	}, nil
}

type docValidator struct{}

func (docValidator) Validate(raw *ports.RawDefinition) (*domain.Definition, error) {
	return &domain.Definition{
		Type:    domain.DefinitionType(raw.Document["type"].(string)),
		Name:    raw.Document["name"].(string),
		Version: raw.Document["version"].(string),
	}, nil
}
