// Package contentcache materializes and caches the content referenced by
// definition cache sources.
package contentcache

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies to file, glob and external sources when none is configured.
const DefaultTTL = time.Hour

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Result is the outcome of materializing one source during a preload.
type Result struct {
	Source domain.CacheSource
	Key    string
	Err    error
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Expired int
	Owners  int
}

// Manager caches cache source content per owner.
type Manager struct {
	strategies map[domain.CacheSourceType]strategy
	enabled    bool
	defaultTTL time.Duration
	inlineTTL  time.Duration
	tracer     ports.Tracer
	logger     ports.Logger
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*domain.CacheEntry
	group   singleflight.Group
}

// New creates a Manager. A nil fetcher makes external sources unavailable.
func New(
	reader ports.ContentReader,
	fetcher ports.ExternalFetcher,
	cfg domain.CacheConfig,
	tracer ports.Tracer,
	logger ports.Logger,
	opts ...Option,
) *Manager {
	m := &Manager{
		strategies: map[domain.CacheSourceType]strategy{
			domain.CacheSourceFile:     fileStrategy{reader: reader},
			domain.CacheSourceGlob:     globStrategy{reader: reader},
			domain.CacheSourceExternal: externalStrategy{fetcher: fetcher},
			domain.CacheSourceInline:   inlineStrategy{},
		},
		enabled:    cfg.Enabled,
		defaultTTL: cfg.DefaultTTL,
		inlineTTL:  cfg.InlineTTL,
		tracer:     tracer,
		logger:     logger,
		now:        time.Now,
		entries:    make(map[string]*domain.CacheEntry),
	}
	if m.defaultTTL <= 0 {
		m.defaultTTL = DefaultTTL
	}
	if m.inlineTTL <= 0 {
		m.inlineTTL = domain.NoExpiry
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) strategy(src domain.CacheSource) (strategy, error) {
	s, ok := m.strategies[src.Type]
	if !ok {
		return nil, domain.Annotate(domain.ErrUnknownSourceType, "type", string(src.Type))
	}
	return s, nil
}

// Key returns the cache key of src for owner: owner:kind:id.
func (m *Manager) Key(owner string, src domain.CacheSource) (string, error) {
	s, err := m.strategy(src)
	if err != nil {
		return "", err
	}
	return owner + ":" + string(src.Type) + ":" + s.id(src), nil
}

// TTL returns how long content of src stays fresh.
func (m *Manager) TTL(src domain.CacheSource) time.Duration {
	switch {
	case src.NeverExpire:
		return domain.NoExpiry
	case src.TTL > 0:
		return time.Duration(src.TTL) * time.Second
	case src.Type == domain.CacheSourceInline:
		return m.inlineTTL
	default:
		return m.defaultTTL
	}
}

// Get returns cached content for src, loading it when absent or expired.
// Concurrent misses for the same key share one load.
func (m *Manager) Get(ctx context.Context, owner string, src domain.CacheSource) (string, error) {
	key, err := m.Key(owner, src)
	if err != nil {
		return "", err
	}
	if content, ok := m.fresh(key); ok {
		return content, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if content, ok := m.fresh(key); ok {
			return content, nil
		}
		return m.load(ctx, key, src)
	})
	if err != nil {
		return "", domain.Annotate(err, "key", key)
	}
	return v.(string), nil
}

// Load materializes src unconditionally and replaces any cached entry.
func (m *Manager) Load(ctx context.Context, owner string, src domain.CacheSource) (string, error) {
	key, err := m.Key(owner, src)
	if err != nil {
		return "", err
	}
	content, err := m.load(ctx, key, src)
	if err != nil {
		return "", domain.Annotate(err, "key", key)
	}
	return content, nil
}

func (m *Manager) load(ctx context.Context, key string, src domain.CacheSource) (string, error) {
	s, err := m.strategy(src)
	if err != nil {
		return "", err
	}
	content, err := s.load(ctx, src)
	if err != nil {
		return "", err
	}
	if !m.enabled {
		return content, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &domain.CacheEntry{
		Content:  content,
		LoadedAt: m.now(),
		TTL:      m.TTL(src),
		Source:   string(src.Type) + ":" + s.id(src),
	}
	return content, nil
}

func (m *Manager) fresh(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.Expired(m.now()) {
		return "", false
	}
	return e.Content, true
}

// Entry returns the cached entry for key, expired or not.
func (m *Manager) Entry(key string) (domain.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.CacheEntry{}, false
	}
	return *e, true
}

// Preload materializes every cache source of def in parallel.
// Each source reports its own result; one failure does not stop the others.
func (m *Manager) Preload(ctx context.Context, owner string, def *domain.Definition) []Result {
	ctx, span := m.tracer.Start(ctx, "contentcache.preload",
		ports.WithAttribute("owner", owner),
		ports.WithAttribute("sources", len(def.CacheSources)),
	)
	defer span.End()

	results := make([]Result, len(def.CacheSources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, src := range def.CacheSources {
		g.Go(func() error {
			key, err := m.Key(owner, src)
			if err == nil {
				_, err = m.Get(gctx, owner, src)
			}
			results[i] = Result{Source: src, Key: key, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			m.logger.Debug("preload " + r.Key + " failed: " + r.Err.Error())
		}
	}
	span.SetAttribute("failed", failed)
	return results
}

// Refresh drops the owner's entries and loads def's sources again.
func (m *Manager) Refresh(ctx context.Context, owner string, def *domain.Definition) []Result {
	m.Invalidate(owner)
	return m.Preload(ctx, owner, def)
}

// Invalidate removes every entry of owner and returns how many were removed.
func (m *Manager) Invalidate(owner string) int {
	prefix := owner + ":"

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// CheckSourceAccessible loads src and discards the content. Nothing is stored.
func (m *Manager) CheckSourceAccessible(ctx context.Context, src domain.CacheSource) error {
	s, err := m.strategy(src)
	if err != nil {
		return err
	}
	_, err = s.load(ctx, src)
	return err
}

// Clear removes every entry.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*domain.CacheEntry)
}

// Stats counts entries, expired entries and distinct owners.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	owners := make(map[string]struct{})
	st := Stats{Entries: len(m.entries)}
	for key, e := range m.entries {
		if e.Expired(now) {
			st.Expired++
		}
		owner, _, _ := strings.Cut(key, ":")
		owners[owner] = struct{}{}
	}
	st.Owners = len(owners)
	return st
}
