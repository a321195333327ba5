// Package app implements the application layer for forge.
package app

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/contentcache"
	"go.trai.ch/forge/internal/engine/lockfile"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/update"
	"go.trai.ch/zerr"
)

// App is the facade the CLI drives. It owns one resolver, one content cache
// and the lockfile and update managers built on top of them.
type App struct {
	resolver *resolver.Resolver
	cache    *contentcache.Manager
	lockfile *lockfile.Manager
	updates  *update.Manager
	logger   ports.Logger
}

// New creates a new App instance.
func New(
	res *resolver.Resolver,
	cache *contentcache.Manager,
	lock *lockfile.Manager,
	updates *update.Manager,
	logger ports.Logger,
) *App {
	return &App{
		resolver: res,
		cache:    cache,
		lockfile: lock,
		updates:  updates,
		logger:   logger,
	}
}

type jsonSwitch interface {
	SetJSON(enable bool)
}

type levelSetter interface {
	SetLevel(name string) error
}

// SetJSONLogs switches the logger to JSON output when it supports it.
func (a *App) SetJSONLogs(enable bool) {
	if l, ok := a.logger.(jsonSwitch); ok {
		l.SetJSON(enable)
	}
}

// SetLogLevel applies a level name to the logger when it supports it.
func (a *App) SetLogLevel(name string) error {
	l, ok := a.logger.(levelSetter)
	if !ok {
		return nil
	}
	if err := l.SetLevel(name); err != nil {
		return zerr.Wrap(err, "failed to apply log level")
	}
	return nil
}

// Resolve resolves spec to one exact definition.
func (a *App) Resolve(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.ResolvedDefinition, error) {
	return a.resolver.Resolve(ctx, typ, spec)
}

// ListAvailable lists every definition of typ across all providers, or only
// across the given sources.
func (a *App) ListAvailable(
	ctx context.Context,
	typ domain.DefinitionType,
	sources ...domain.SourceKind,
) ([]domain.AvailableDefinition, error) {
	return a.resolver.ListAvailable(ctx, typ, sources...)
}

// Exists reports whether spec can be satisfied.
func (a *App) Exists(ctx context.Context, typ domain.DefinitionType, spec string) (bool, error) {
	return a.resolver.Exists(ctx, typ, spec)
}

// Info resolves spec and lists its available versions.
func (a *App) Info(ctx context.Context, typ domain.DefinitionType, spec string) (*domain.DefinitionInfo, error) {
	return a.resolver.Info(ctx, typ, spec)
}

// GenerateLockfile locks the configured requirements and their dependencies.
func (a *App) GenerateLockfile(ctx context.Context, force bool) (*domain.Lockfile, error) {
	return a.lockfile.Generate(ctx, lockfile.GenerateOptions{Force: force})
}

// LoadLockfile reads the current lockfile.
func (a *App) LoadLockfile(ctx context.Context) (*domain.Lockfile, error) {
	return a.lockfile.Load(ctx)
}

// ValidateLockfile loads the lockfile and checks it against the providers.
func (a *App) ValidateLockfile(ctx context.Context) (*domain.LockValidation, error) {
	lf, err := a.lockfile.Load(ctx)
	if err != nil {
		return nil, err
	}
	return a.lockfile.Validate(ctx, lf)
}

// LockfilePath returns where the lockfile lives.
func (a *App) LockfilePath() string {
	return a.lockfile.Path()
}

// CacheGet returns cached content for src, loading it when absent or expired.
func (a *App) CacheGet(ctx context.Context, owner string, src domain.CacheSource) (string, error) {
	return a.cache.Get(ctx, owner, src)
}

// CacheLoad reloads src regardless of what is cached.
func (a *App) CacheLoad(ctx context.Context, owner string, src domain.CacheSource) (string, error) {
	return a.cache.Load(ctx, owner, src)
}

// CacheInvalidate drops every entry owned by owner and returns how many were removed.
func (a *App) CacheInvalidate(owner string) int {
	return a.cache.Invalidate(owner)
}

// CachePreload resolves spec and materializes all of its cache sources.
func (a *App) CachePreload(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error) {
	resolved, err := a.resolver.Resolve(ctx, typ, spec)
	if err != nil {
		return nil, err
	}
	return a.cache.Preload(ctx, Owner(resolved), resolved.Definition), nil
}

// CacheRefresh resolves spec, drops its cached content and loads it again.
func (a *App) CacheRefresh(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error) {
	resolved, err := a.resolver.Resolve(ctx, typ, spec)
	if err != nil {
		return nil, err
	}
	return a.cache.Refresh(ctx, Owner(resolved), resolved.Definition), nil
}

// CacheCheckAccessible resolves spec and probes each of its cache sources
// without caching anything.
func (a *App) CacheCheckAccessible(ctx context.Context, typ domain.DefinitionType, spec string) ([]contentcache.Result, error) {
	resolved, err := a.resolver.Resolve(ctx, typ, spec)
	if err != nil {
		return nil, err
	}

	owner := Owner(resolved)
	results := make([]contentcache.Result, len(resolved.Definition.CacheSources))
	for i, src := range resolved.Definition.CacheSources {
		results[i].Source = src
		results[i].Key, results[i].Err = a.cache.Key(owner, src)
		if results[i].Err != nil {
			continue
		}
		results[i].Err = a.cache.CheckSourceAccessible(ctx, src)
	}
	return results, nil
}

// CheckUpdates reports newer versions for every locked entry.
func (a *App) CheckUpdates(ctx context.Context) (*domain.UpdateCheck, error) {
	return a.updates.CheckUpdates(ctx)
}

// ApplyUpdates moves locked entries to newer versions.
func (a *App) ApplyUpdates(ctx context.Context, opts update.ApplyOptions) (*domain.UpdateResult, error) {
	return a.updates.ApplyUpdates(ctx, opts)
}

// Owner is the cache owner key for a resolved definition.
func Owner(r *domain.ResolvedDefinition) string {
	return r.Name() + "@" + r.ExactVersion
}
