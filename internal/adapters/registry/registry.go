// Package registry implements source providers over on-disk registries laid
// out as <root>/<agents|tools>/<name>/<version>/<agent|tool>.yaml.
package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/version"
	"go.trai.ch/zerr"
)

// Provider implements ports.SourceProvider over a registry directory.
type Provider struct {
	kind domain.SourceKind
	root string
}

// New creates a Provider for root reporting itself as kind.
func New(kind domain.SourceKind, root string) *Provider {
	return &Provider{kind: kind, root: root}
}

// Kind reports which source this provider represents.
func (p *Provider) Kind() domain.SourceKind {
	return p.kind
}

// Root returns the registry directory.
func (p *Provider) Root() string {
	return p.root
}

// ListVersions returns the version directories of name that hold a definition file.
func (p *Provider) ListVersions(ctx context.Context, typ domain.DefinitionType, name string) ([]domain.VersionLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validSegment(name) {
		return nil, nil
	}

	dir := filepath.Join(p.root, typ.Plural(), name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read registry"), "path", dir)
	}

	var out []domain.VersionLocation
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if path, ok := p.definitionFile(typ, filepath.Join(dir, entry.Name())); ok {
			out = append(out, domain.VersionLocation{Version: entry.Name(), Location: path})
		}
	}
	return out, nil
}

// Open reads the definition file of an exact version.
func (p *Provider) Open(ctx context.Context, typ domain.DefinitionType, name, ver string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if !validSegment(name) || !validSegment(ver) {
		return nil, "", zerr.With(zerr.Wrap(domain.ErrNotFound, name+"@"+ver), "source", p.kind.String())
	}

	dir := filepath.Join(p.root, typ.Plural(), name, ver)
	path, ok := p.definitionFile(typ, dir)
	if !ok {
		return nil, "", zerr.With(zerr.Wrap(domain.ErrNotFound, name+"@"+ver), "path", dir)
	}

	content, err := os.ReadFile(path) //nolint:gosec // path is built from the registry root
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to read definition"), "path", path)
	}
	return content, path, nil
}

// List returns every definition of typ with at least one version.
func (p *Provider) List(ctx context.Context, typ domain.DefinitionType) ([]domain.AvailableDefinition, error) {
	dir := filepath.Join(p.root, typ.Plural())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read registry"), "path", dir)
	}

	var out []domain.AvailableDefinition
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		versions, err := p.ListVersions(ctx, typ, entry.Name())
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			continue
		}
		names := make([]string, len(versions))
		for i, v := range versions {
			names[i] = v.Version
		}
		out = append(out, domain.AvailableDefinition{
			Name:     entry.Name(),
			Type:     typ,
			Versions: version.Sort(names),
			Sources:  []domain.SourceKind{p.kind},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *Provider) definitionFile(typ domain.DefinitionType, dir string) (string, bool) {
	for _, name := range domain.DefinitionFileNames(typ) {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// validSegment rejects names that would escape the registry directory.
func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && filepath.Base(s) == s
}
