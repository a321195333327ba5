// Package lockstore persists lockfiles as indented JSON with atomic writes.
package lockstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.LockfileStore for a single lockfile path.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store for the lockfile at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the lockfile location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the lockfile is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, zerr.With(zerr.Wrap(err, "failed to stat lockfile"), "path", s.path)
}

// Load reads and decodes the lockfile.
func (s *Store) Load() (*domain.Lockfile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Annotate(domain.ErrLockfileMissing, "path", s.path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", s.path)
	}

	var lf domain.Lockfile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&lf); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrLockfileCorrupt, err.Error()), "path", s.path)
	}
	if lf.SchemaVersion == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrLockfileCorrupt, "missing schemaVersion"), "path", s.path)
	}
	if lf.Agents == nil {
		lf.Agents = make(map[string]domain.LockedEntry)
	}
	if lf.Tools == nil {
		lf.Tools = make(map[string]domain.LockedEntry)
	}
	return &lf, nil
}

// Save encodes lf and replaces the lockfile atomically.
func (s *Store) Save(lf *domain.Lockfile) error {
	data, err := Encode(lf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", s.path)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", tmpName)
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrLockfileWriteFailed, err.Error()), "path", s.path)
	}
	return nil
}

// Encode renders lf in the on-disk format: two-space indent, trailing newline.
func Encode(lf *domain.Lockfile) ([]byte, error) {
	out := *lf
	if out.Agents == nil {
		out.Agents = map[string]domain.LockedEntry{}
	}
	if out.Tools == nil {
		out.Tools = map[string]domain.LockedEntry{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode lockfile")
	}
	return append(data, '\n'), nil
}
