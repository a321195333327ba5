package lockstore_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/lockstore"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
)

var _ ports.LockfileStore = (*lockstore.Store)(nil)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleLockfile() *domain.Lockfile {
	lf := domain.NewLockfile(fixedTime)
	lf.Agents["reviewer"] = domain.LockedEntry{Version: "1.2.0", Source: domain.SourceLocal, Checksum: "abc123"}
	lf.Tools["grep"] = domain.LockedEntry{Version: "2.0.0", Source: domain.SourceStockyard, Checksum: "def456"}
	return lf
}

func TestEncode_Golden(t *testing.T) {
	g := goldie.New(t)

	data, err := lockstore.Encode(sampleLockfile())
	require.NoError(t, err)
	g.Assert(t, "lockfile", data)

	empty := &domain.Lockfile{SchemaVersion: domain.LockfileSchemaVersion, GeneratedAt: fixedTime}
	data, err = lockstore.Encode(empty)
	require.NoError(t, err)
	g.Assert(t, "empty", data)
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "forge.lock")
	s := lockstore.New(path)
	assert.Equal(t, path, s.Path())

	ok, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(sampleLockfile()))

	ok, err = s.Exists()
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleLockfile(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestStore_LoadMissing(t *testing.T) {
	s := lockstore.New(filepath.Join(t.TempDir(), "forge.lock"))

	_, err := s.Load()
	require.ErrorIs(t, err, domain.ErrLockfileMissing)
	assert.NotErrorIs(t, err, domain.ErrLockfileCorrupt)
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated", content: `{"schemaVersion": 1, "agents": {`},
		{name: "wrong shape", content: `{"schemaVersion": "one"}`},
		{name: "no schema version", content: `{"agents": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "forge.lock")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), domain.FilePerm))

			_, err := lockstore.New(path).Load()
			require.ErrorIs(t, err, domain.ErrLockfileCorrupt)
			assert.NotErrorIs(t, err, domain.ErrLockfileMissing)
		})
	}
}

func TestStore_LoadFillsMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.lock")
	require.NoError(t, os.WriteFile(path, []byte(`{"schemaVersion": 1}`), domain.FilePerm))

	lf, err := lockstore.New(path).Load()
	require.NoError(t, err)
	assert.NotNil(t, lf.Agents)
	assert.NotNil(t, lf.Tools)
}

func TestStore_ConcurrentSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.lock")
	s := lockstore.New(path)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			assert.NoError(t, s.Save(sampleLockfile()))
		})
	}
	wg.Wait()

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}
