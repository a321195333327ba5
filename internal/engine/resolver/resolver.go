// Package resolver resolves name specs to exact definition versions across
// an ordered chain of source providers.
package resolver

import (
	"context"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/version"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options tunes a single resolution.
type Options struct {
	// Fresh skips the resolution cache.
	Fresh bool
	// IncludePrerelease lets prereleases satisfy ranges that do not mention one.
	IncludePrerelease bool
}

type cacheKey struct {
	typ     domain.DefinitionType
	name    string
	version string
}

func (k cacheKey) String() string {
	return string(k.typ) + ":" + k.name + "@" + k.version
}

// Resolver turns name specs into ResolvedDefinitions.
// Providers are consulted in the order given, which is their priority.
type Resolver struct {
	providers []ports.SourceProvider
	loader    ports.DefinitionLoader
	validator ports.DefinitionValidator
	tracer    ports.Tracer
	logger    ports.Logger
	now       func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]*domain.ResolvedDefinition
	group singleflight.Group
}

// New creates a Resolver over the given providers.
func New(
	providers []ports.SourceProvider,
	loader ports.DefinitionLoader,
	validator ports.DefinitionValidator,
	tracer ports.Tracer,
	logger ports.Logger,
) *Resolver {
	return &Resolver{
		providers: providers,
		loader:    loader,
		validator: validator,
		tracer:    tracer,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[cacheKey]*domain.ResolvedDefinition),
	}
}

// Providers returns the source kinds in priority order.
func (r *Resolver) Providers() []domain.SourceKind {
	kinds := make([]domain.SourceKind, len(r.providers))
	for i, p := range r.providers {
		kinds[i] = p.Kind()
	}
	return kinds
}

// Resolve resolves spec ("name" or "name@range") to the highest satisfying version.
func (r *Resolver) Resolve(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error) {
	return r.ResolveWithOptions(ctx, typ, spec, Options{})
}

// ResolveFresh resolves spec without consulting the cache.
func (r *Resolver) ResolveFresh(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error) {
	return r.ResolveWithOptions(ctx, typ, spec, Options{Fresh: true})
}

// ResolveWithOptions resolves spec with explicit options.
func (r *Resolver) ResolveWithOptions(
	ctx context.Context,
	typ domain.DefinitionType,
	spec string,
	opts Options,
) (*domain.ResolvedDefinition, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.resolve",
		ports.WithAttribute("type", typ.String()),
		ports.WithAttribute("spec", spec),
	)
	defer span.End()

	resolved, err := r.resolve(ctx, typ, spec, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttribute("version", resolved.ExactVersion)
	span.SetAttribute("source", resolved.Source.String())
	return resolved, nil
}

func (r *Resolver) resolve(
	ctx context.Context,
	typ domain.DefinitionType,
	spec string,
	opts Options,
) (*domain.ResolvedDefinition, error) {
	id, err := domain.ParseIdentifier(spec)
	if err != nil {
		return nil, err
	}
	rng, err := version.ParseRange(id.Range)
	if err != nil {
		return nil, r.annotate(err, id)
	}

	if !opts.Fresh && version.IsExact(id.Range) {
		exact := strings.TrimPrefix(strings.TrimSpace(id.Range), "=")
		if cached, ok := r.cached(cacheKey{typ: typ, name: id.Name, version: exact}); ok {
			return cached, nil
		}
	}

	idx, err := r.collect(ctx, typ, id.Name)
	if err != nil {
		return nil, r.annotate(err, id)
	}
	if len(idx.order) == 0 {
		return nil, r.annotate(idx.notFound(id), id)
	}

	var matchOpts []version.Option
	if opts.IncludePrerelease {
		matchOpts = append(matchOpts, version.WithPrerelease())
	}
	best, ok := rng.Max(idx.order, matchOpts...)
	if !ok {
		err := zerr.Wrap(domain.ErrNoSatisfyingVersion, "resolve "+id.String())
		err = zerr.With(err, "available", version.Sort(idx.order))
		return nil, r.annotate(err, id)
	}

	key := cacheKey{typ: typ, name: id.Name, version: best}
	if !opts.Fresh {
		if cached, ok := r.cached(key); ok {
			return cached, nil
		}
	}

	flightKey := key.String()
	if opts.Fresh {
		flightKey = "fresh:" + flightKey
	}
	v, err, _ := r.group.Do(flightKey, func() (any, error) {
		if !opts.Fresh {
			if cached, ok := r.cached(key); ok {
				return cached, nil
			}
		}
		resolved, err := r.load(ctx, key, idx.locations[best])
		if err != nil {
			return nil, err
		}
		r.store(key, resolved)
		return resolved, nil
	})
	if err != nil {
		return nil, r.annotate(err, id)
	}
	return v.(*domain.ResolvedDefinition), nil
}

// load opens the version from the first provider that reported it, falling
// through to the next on open failures.
func (r *Resolver) load(ctx context.Context, key cacheKey, candidates []candidate) (*domain.ResolvedDefinition, error) {
	var failed []string
	var lastErr error

	for _, c := range candidates {
		content, location, err := c.provider.Open(ctx, key.typ, key.name, key.version)
		if err != nil {
			r.logger.Debug("open " + key.String() + " from " + c.provider.Kind().String() + " failed: " + err.Error())
			failed = append(failed, c.provider.Kind().String())
			lastErr = err
			continue
		}
		if location == "" {
			location = c.location
		}

		raw, err := r.loader.Load(content, location)
		if err != nil {
			return nil, domain.Annotate(err, "location", location)
		}
		def, err := r.validator.Validate(raw)
		if err != nil {
			return nil, domain.Annotate(err, "location", location)
		}
		if err := checkIdentity(def, key); err != nil {
			return nil, domain.Annotate(err, "location", location)
		}
		def.Raw = content

		return &domain.ResolvedDefinition{
			Definition:   def,
			ExactVersion: key.version,
			Source:       c.provider.Kind(),
			ResolvedAt:   r.now().UTC(),
			Location:     location,
			Checksum:     domain.Checksum(content),
		}, nil
	}

	err := zerr.Wrap(domain.ErrSourceUnavailable, "open "+key.name+"@"+key.version)
	if lastErr != nil {
		err = zerr.With(err, "cause", lastErr.Error())
	}
	return nil, zerr.With(err, "failed_providers", failed)
}

func checkIdentity(def *domain.Definition, key cacheKey) error {
	if def.Type == "" {
		def.Type = key.typ
	}
	switch {
	case def.Name != key.name:
		return zerr.With(zerr.Wrap(domain.ErrDefinitionMismatch, "name "+def.Name), "expected", key.name)
	case def.Type != key.typ:
		return zerr.With(zerr.Wrap(domain.ErrDefinitionMismatch, "type "+def.Type.String()), "expected", key.typ.String())
	case version.Compare(def.Version, key.version) != 0:
		return zerr.With(zerr.Wrap(domain.ErrDefinitionMismatch, "version "+def.Version), "expected", key.version)
	}
	return nil
}

// annotate attaches the identifying metadata every resolution error carries.
func (r *Resolver) annotate(err error, id domain.DefinitionIdentifier) error {
	err = domain.Annotate(err, "name", id.Name)
	err = zerr.With(err, "range", id.Range)
	return zerr.With(err, "providers", kindStrings(r.Providers()))
}

func (r *Resolver) cached(key cacheKey) (*domain.ResolvedDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.cache[key]
	return v, ok
}

func (r *Resolver) store(key cacheKey, resolved *domain.ResolvedDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = resolved
}

// ClearCache drops every cached resolution.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[cacheKey]*domain.ResolvedDefinition)
}

// CacheStats returns the number of cached resolutions per type.
func (r *Resolver) CacheStats() map[domain.DefinitionType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[domain.DefinitionType]int, len(domain.DefinitionTypes))
	for _, t := range domain.DefinitionTypes {
		stats[t] = 0
	}
	for k := range r.cache {
		stats[k.typ]++
	}
	return stats
}

type candidate struct {
	provider ports.SourceProvider
	location string
}

// versionIndex merges the version listings of every provider.
type versionIndex struct {
	order     []string
	locations map[string][]candidate
	failures  map[domain.SourceKind]error
}

func (idx *versionIndex) notFound(id domain.DefinitionIdentifier) error {
	err := zerr.Wrap(domain.ErrNotFound, "resolve "+id.String())
	if len(idx.failures) > 0 {
		err = zerr.With(err, "failed_providers", failedKinds(idx.failures))
	}
	return err
}

// collect queries every provider in parallel. Per-provider failures are
// recorded; only a failure of every provider is an error.
func (r *Resolver) collect(ctx context.Context, typ domain.DefinitionType, name string) (*versionIndex, error) {
	if len(r.providers) == 0 {
		return nil, zerr.Wrap(domain.ErrNoProviders, "list versions of "+name)
	}

	listings := make([][]domain.VersionLocation, len(r.providers))
	errs := make([]error, len(r.providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range r.providers {
		g.Go(func() error {
			listings[i], errs[i] = p.ListVersions(gctx, typ, name)
			return nil
		})
	}
	_ = g.Wait()

	idx := &versionIndex{
		locations: make(map[string][]candidate),
		failures:  make(map[domain.SourceKind]error),
	}
	for i, p := range r.providers {
		if errs[i] != nil {
			r.logger.Debug("provider " + p.Kind().String() + " failed for " + name + ": " + errs[i].Error())
			idx.failures[p.Kind()] = errs[i]
			continue
		}
		for _, vl := range listings[i] {
			if _, seen := idx.locations[vl.Version]; !seen {
				idx.order = append(idx.order, vl.Version)
			}
			idx.locations[vl.Version] = append(idx.locations[vl.Version], candidate{provider: p, location: vl.Location})
		}
	}

	if len(idx.failures) == len(r.providers) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := zerr.Wrap(domain.ErrSourceUnavailable, "list versions of "+name)
		return nil, zerr.With(err, "failed_providers", failedKinds(idx.failures))
	}
	return idx, nil
}

// AvailableVersions returns every version any provider offers for name, ascending.
func (r *Resolver) AvailableVersions(ctx context.Context, typ domain.DefinitionType, name string) ([]string, error) {
	idx, err := r.collect(ctx, typ, name)
	if err != nil {
		return nil, domain.Annotate(err, "name", name)
	}
	return version.Sort(idx.order), nil
}

// VersionSources returns, per version, the source kinds offering it in priority order.
func (r *Resolver) VersionSources(ctx context.Context, typ domain.DefinitionType, name string) (map[string][]domain.SourceKind, error) {
	idx, err := r.collect(ctx, typ, name)
	if err != nil {
		return nil, domain.Annotate(err, "name", name)
	}
	out := make(map[string][]domain.SourceKind, len(idx.locations))
	for v, cands := range idx.locations {
		for _, c := range cands {
			out[v] = append(out[v], c.provider.Kind())
		}
	}
	return out, nil
}

// ListAvailable merges the listings of every provider, sorted by name.
// Non-empty sources restricts the listing to providers of those kinds.
func (r *Resolver) ListAvailable(
	ctx context.Context,
	typ domain.DefinitionType,
	sources ...domain.SourceKind,
) ([]domain.AvailableDefinition, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.list", ports.WithAttribute("type", typ.String()))
	defer span.End()

	providers := r.providers
	if len(sources) > 0 {
		providers = nil
		for _, p := range r.providers {
			if slices.Contains(sources, p.Kind()) {
				providers = append(providers, p)
			}
		}
	}
	if len(providers) == 0 {
		err := zerr.Wrap(domain.ErrNoProviders, "list "+typ.Plural())
		if len(sources) > 0 {
			err = zerr.With(err, "sources", kindStrings(sources))
		}
		return nil, err
	}

	listings := make([][]domain.AvailableDefinition, len(providers))
	errs := make([]error, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range providers {
		g.Go(func() error {
			listings[i], errs[i] = p.List(gctx, typ)
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[string]*domain.AvailableDefinition)
	failures := make(map[domain.SourceKind]error)
	for i, p := range providers {
		if errs[i] != nil {
			r.logger.Debug("provider " + p.Kind().String() + " list failed: " + errs[i].Error())
			failures[p.Kind()] = errs[i]
			continue
		}
		for _, def := range listings[i] {
			entry, ok := merged[def.Name]
			if !ok {
				entry = &domain.AvailableDefinition{Name: def.Name, Type: typ}
				merged[def.Name] = entry
			}
			entry.Versions = append(entry.Versions, def.Versions...)
			entry.Sources = append(entry.Sources, p.Kind())
		}
	}

	if len(failures) == len(providers) {
		err := zerr.Wrap(domain.ErrSourceUnavailable, "list "+typ.Plural())
		err = zerr.With(err, "failed_providers", failedKinds(failures))
		span.RecordError(err)
		return nil, err
	}

	out := make([]domain.AvailableDefinition, 0, len(merged))
	for _, entry := range merged {
		entry.Versions = version.Sort(entry.Versions)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	span.SetAttribute("count", len(out))
	return out, nil
}

// Exists reports whether spec resolves to some available version.
// Not-found and unsatisfiable ranges report false without error.
func (r *Resolver) Exists(ctx context.Context, typ domain.DefinitionType, spec string) (bool, error) {
	id, err := domain.ParseIdentifier(spec)
	if err != nil {
		return false, err
	}
	rng, err := version.ParseRange(id.Range)
	if err != nil {
		return false, r.annotate(err, id)
	}

	idx, err := r.collect(ctx, typ, id.Name)
	if err != nil {
		return false, r.annotate(err, id)
	}
	_, ok := rng.Max(idx.order)
	return ok, nil
}

// Info resolves spec and reports it alongside every available version.
func (r *Resolver) Info(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.DefinitionInfo, error) {
	resolved, err := r.Resolve(ctx, typ, spec)
	if err != nil {
		return nil, err
	}
	versions, err := r.AvailableVersions(ctx, typ, resolved.Name())
	if err != nil {
		return nil, err
	}
	return &domain.DefinitionInfo{Resolved: resolved, AvailableVersions: versions}, nil
}

func failedKinds(failures map[domain.SourceKind]error) []string {
	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, k.String())
	}
	sort.Strings(kinds)
	return kinds
}

func kindStrings(kinds []domain.SourceKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
