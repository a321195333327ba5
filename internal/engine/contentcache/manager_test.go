package contentcache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/fs"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.trai.ch/forge/internal/engine/contentcache"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	root    string
	clock   *clock
	fetcher *mocks.MockExternalFetcher
	cache   *contentcache.Manager
}

func newFixture(t *testing.T, cfg domain.CacheConfig) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	f := &fixture{
		root:    t.TempDir(),
		clock:   &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		fetcher: mocks.NewMockExternalFetcher(ctrl),
	}
	f.cache = contentcache.New(fs.NewReader(f.root), f.fetcher, cfg, telemetry.NewNoOpTracer(), logger,
		contentcache.WithClock(f.clock.Now))
	return f
}

func enabled() domain.CacheConfig {
	return domain.CacheConfig{Enabled: true, DefaultTTL: 10 * time.Minute}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
}

func TestKey(t *testing.T) {
	f := newFixture(t, enabled())

	tests := []struct {
		src  domain.CacheSource
		want string
	}{
		{domain.CacheSource{Type: domain.CacheSourceFile, Path: "docs/a.md"}, "reviewer:file:docs/a.md"},
		{domain.CacheSource{Type: domain.CacheSourceGlob, Pattern: "docs/*.md"}, "reviewer:glob:docs/*.md"},
		{domain.CacheSource{Type: domain.CacheSourceExternal, URI: "codex://a/b/c.md"}, "reviewer:external:codex://a/b/c.md"},
		{
			domain.CacheSource{Type: domain.CacheSourceInline, Content: "hello"},
			"reviewer:inline:" + strconv.FormatUint(xxhash.Sum64String("hello"), 16),
		},
	}
	for _, tt := range tests {
		got, err := f.cache.Key("reviewer", tt.src)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := f.cache.Key("reviewer", domain.CacheSource{Type: "ftp"})
	require.ErrorIs(t, err, domain.ErrUnknownSourceType)
}

func TestTTL(t *testing.T) {
	f := newFixture(t, enabled())

	assert.Equal(t, 10*time.Minute, f.cache.TTL(domain.CacheSource{Type: domain.CacheSourceFile}))
	assert.Equal(t, 30*time.Second, f.cache.TTL(domain.CacheSource{Type: domain.CacheSourceGlob, TTL: 30}))
	assert.Equal(t, domain.NoExpiry, f.cache.TTL(domain.CacheSource{Type: domain.CacheSourceInline}))
	assert.Equal(t, domain.NoExpiry, f.cache.TTL(domain.CacheSource{Type: domain.CacheSourceFile, NeverExpire: true}))

	g := newFixture(t, domain.CacheConfig{Enabled: true, InlineTTL: time.Minute})
	assert.Equal(t, contentcache.DefaultTTL, g.cache.TTL(domain.CacheSource{Type: domain.CacheSourceExternal}))
	assert.Equal(t, time.Minute, g.cache.TTL(domain.CacheSource{Type: domain.CacheSourceInline}))

	h := newFixture(t, domain.CacheConfig{Enabled: true, DefaultTTL: -time.Minute, InlineTTL: -5 * time.Second})
	assert.Equal(t, contentcache.DefaultTTL, h.cache.TTL(domain.CacheSource{Type: domain.CacheSourceFile}))
	assert.Equal(t, domain.NoExpiry, h.cache.TTL(domain.CacheSource{Type: domain.CacheSourceInline}))
}

func TestGet_NegativeInlineTTLNeverExpires(t *testing.T) {
	f := newFixture(t, domain.CacheConfig{Enabled: true, InlineTTL: -5 * time.Second})
	src := domain.CacheSource{Type: domain.CacheSourceInline, Content: "be terse"}

	_, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	assert.Equal(t, contentcache.Stats{Entries: 1, Owners: 1}, f.cache.Stats())
}

func TestGet_FileExpiry(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "docs/style.md", "v1")
	src := domain.CacheSource{Type: domain.CacheSourceFile, Path: "docs/style.md", TTL: 60}

	got, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	f.write(t, "docs/style.md", "v2")

	// Exactly at the TTL the entry is still fresh.
	f.clock.Advance(60 * time.Second)
	got, err = f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	f.clock.Advance(time.Nanosecond)
	got, err = f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	entry, ok := f.cache.Entry("reviewer:file:docs/style.md")
	require.True(t, ok)
	assert.Equal(t, "file:docs/style.md", entry.Source)
	assert.Equal(t, time.Minute, entry.TTL)
}

func TestGet_InlineNeverExpires(t *testing.T) {
	f := newFixture(t, enabled())
	src := domain.CacheSource{Type: domain.CacheSourceInline, Content: "Be kind."}

	got, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "Be kind.", got)

	f.clock.Advance(24 * 365 * time.Hour)
	assert.Equal(t, contentcache.Stats{Entries: 1, Owners: 1}, f.cache.Stats())
}

func TestGet_Glob(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "rules/b.md", "second")
	f.write(t, "rules/a.md", "first")
	f.write(t, "rules/skip.txt", "ignored")

	got, err := f.cache.Get(t.Context(), "reviewer", domain.CacheSource{Type: domain.CacheSourceGlob, Pattern: "rules/*.md"})
	require.NoError(t, err)
	want := "// File: " + filepath.Join("rules", "a.md") + "\nfirst\n\n// File: " + filepath.Join("rules", "b.md") + "\nsecond"
	assert.Equal(t, want, got)

	_, err = f.cache.Get(t.Context(), "reviewer", domain.CacheSource{Type: domain.CacheSourceGlob, Pattern: "none/*.md"})
	require.ErrorIs(t, err, domain.ErrNoGlobMatches)
}

func TestGet_External(t *testing.T) {
	f := newFixture(t, enabled())
	src := domain.CacheSource{Type: domain.CacheSourceExternal, URI: "codex://acme/handbook/review.md"}
	ref := domain.ExternalReference{Scheme: "codex", Org: "acme", Project: "handbook", Path: "review.md"}

	f.fetcher.EXPECT().Available().Return(true)
	f.fetcher.EXPECT().Fetch(gomock.Any(), ref).Return("# Review", nil).Times(1)

	got, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "# Review", got)

	// Served from cache; the fetcher is not called again.
	got, err = f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "# Review", got)
}

func TestGet_ExternalUnavailable(t *testing.T) {
	f := newFixture(t, enabled())
	f.fetcher.EXPECT().Available().Return(false).AnyTimes()
	src := domain.CacheSource{Type: domain.CacheSourceExternal, URI: "codex://acme/handbook/review.md"}

	_, err := f.cache.Get(t.Context(), "reviewer", src)
	require.ErrorIs(t, err, domain.ErrIntegrationUnavailable)
	require.ErrorIs(t, f.cache.CheckSourceAccessible(t.Context(), src), domain.ErrIntegrationUnavailable)

	noFetcher := contentcache.New(fs.NewReader(f.root), nil, enabled(), telemetry.NewNoOpTracer(), nil)
	require.ErrorIs(t, noFetcher.CheckSourceAccessible(t.Context(), src), domain.ErrIntegrationUnavailable)

	bad := domain.CacheSource{Type: domain.CacheSourceExternal, URI: "not-a-reference"}
	require.ErrorIs(t, f.cache.CheckSourceAccessible(t.Context(), bad), domain.ErrInvalidReference)
}

// countingReader counts file reads and holds them until released.
type countingReader struct {
	ports.ContentReader
	reads   atomic.Int32
	release chan struct{}
}

func (r *countingReader) ReadFile(path string) (string, error) {
	r.reads.Add(1)
	<-r.release
	return r.ContentReader.ReadFile(path)
}

func TestGet_ConcurrentMissesLoadOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("shared"), domain.FilePerm))
	reader := &countingReader{ContentReader: fs.NewReader(root), release: make(chan struct{})}
	cache := contentcache.New(reader, nil, enabled(), telemetry.NewNoOpTracer(), nil)
	src := domain.CacheSource{Type: domain.CacheSourceFile, Path: "a.md"}

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := range n {
		wg.Go(func() {
			got, err := cache.Get(context.Background(), "reviewer", src)
			assert.NoError(t, err)
			results[i] = got
		})
	}

	require.Eventually(t, func() bool { return reader.reads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(reader.release)
	wg.Wait()

	assert.Equal(t, int32(1), reader.reads.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestLoad_Forces(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "a.md", "v1")
	src := domain.CacheSource{Type: domain.CacheSourceFile, Path: "a.md"}

	_, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	f.write(t, "a.md", "v2")

	got, err := f.cache.Load(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	got, err = f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestDisabled_DoesNotStore(t *testing.T) {
	f := newFixture(t, domain.CacheConfig{Enabled: false})
	f.write(t, "a.md", "v1")
	src := domain.CacheSource{Type: domain.CacheSourceFile, Path: "a.md"}

	_, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	f.write(t, "a.md", "v2")

	got, err := f.cache.Get(t.Context(), "reviewer", src)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Zero(t, f.cache.Stats().Entries)
}

func TestPreload_Refresh_Invalidate(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "docs/style.md", "style")
	def := &domain.Definition{
		Name: "reviewer",
		CacheSources: []domain.CacheSource{
			{Type: domain.CacheSourceFile, Path: "docs/style.md"},
			{Type: domain.CacheSourceFile, Path: "docs/missing.md"},
			{Type: domain.CacheSourceInline, Content: "Be kind."},
			{Type: "ftp"},
		},
	}

	results := f.cache.Preload(t.Context(), "reviewer", def)
	require.Len(t, results, 4)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "reviewer:file:docs/style.md", results[0].Key)
	require.ErrorIs(t, results[1].Err, domain.ErrSourceReadFailed)
	require.NoError(t, results[2].Err)
	require.ErrorIs(t, results[3].Err, domain.ErrUnknownSourceType)

	_, err := f.cache.Get(t.Context(), "planner", domain.CacheSource{Type: domain.CacheSourceInline, Content: "other"})
	require.NoError(t, err)
	assert.Equal(t, contentcache.Stats{Entries: 3, Owners: 2}, f.cache.Stats())

	f.write(t, "docs/style.md", "restyled")
	f.cache.Refresh(t.Context(), "reviewer", def)
	got, err := f.cache.Get(t.Context(), "reviewer", def.CacheSources[0])
	require.NoError(t, err)
	assert.Equal(t, "restyled", got)

	assert.Equal(t, 2, f.cache.Invalidate("reviewer"))
	assert.Equal(t, 0, f.cache.Invalidate("reviewer"))
	assert.Equal(t, contentcache.Stats{Entries: 1, Owners: 1}, f.cache.Stats())

	f.clock.Advance(time.Hour)
	f.cache.Clear()
	assert.Equal(t, contentcache.Stats{}, f.cache.Stats())
}

func TestStats_Expired(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "a.md", "a")

	_, err := f.cache.Get(t.Context(), "reviewer", domain.CacheSource{Type: domain.CacheSourceFile, Path: "a.md", TTL: 1})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, contentcache.Stats{Entries: 1, Expired: 1, Owners: 1}, f.cache.Stats())
}

func TestCheckSourceAccessible(t *testing.T) {
	f := newFixture(t, enabled())
	f.write(t, "docs/a.md", "a")

	require.NoError(t, f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceFile, Path: "docs/a.md"}))
	require.NoError(t, f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceGlob, Pattern: "docs/*.md"}))
	require.NoError(t, f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceInline}))
	require.ErrorIs(t,
		f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceFile, Path: "docs/b.md"}),
		domain.ErrSourceReadFailed)
	require.ErrorIs(t,
		f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceFile}),
		domain.ErrSourceReadFailed)
	require.ErrorIs(t,
		f.cache.CheckSourceAccessible(t.Context(), domain.CacheSource{Type: domain.CacheSourceGlob, Pattern: "*.txt"}),
		domain.ErrNoGlobMatches)

	// Checks never populate the cache.
	assert.Equal(t, contentcache.Stats{}, f.cache.Stats())
}

func TestCheckSourceAccessible_ExternalFetchFails(t *testing.T) {
	f := newFixture(t, enabled())
	src := domain.CacheSource{Type: domain.CacheSourceExternal, URI: "codex://acme/handbook/review.md"}
	refused := errors.New("connection refused")

	f.fetcher.EXPECT().Available().Return(true).Times(2)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return("", refused).Times(2)

	require.ErrorIs(t, f.cache.CheckSourceAccessible(t.Context(), src), refused)

	_, err := f.cache.Get(t.Context(), "reviewer", src)
	require.ErrorIs(t, err, refused)
}
