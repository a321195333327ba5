// Package fs reads local cache source content.
package fs

import (
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Reader implements ports.ContentReader relative to a root directory.
type Reader struct {
	root string
}

// NewReader creates a Reader rooted at root.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// Root returns the directory relative paths are resolved against.
func (r *Reader) Root() string {
	return r.root
}

// ReadFile returns the text of path.
func (r *Reader) ReadFile(path string) (string, error) {
	full := r.abs(path)
	data, err := os.ReadFile(full) //nolint:gosec // Path is declared by the definition
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrSourceReadFailed, err.Error()), "path", full)
	}
	return string(data), nil
}

// Glob resolves pattern to the sorted list of regular files it matches.
// Matches of a relative pattern are returned relative to the root.
func (r *Reader) Glob(pattern string) ([]string, error) {
	full := r.abs(pattern)

	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "pattern", full)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, r.relative(pattern, match))
	}
	if len(files) == 0 {
		return nil, domain.Annotate(domain.ErrNoGlobMatches, "pattern", full)
	}

	sort.Strings(files)
	return files, nil
}

func (r *Reader) abs(path string) string {
	if filepath.IsAbs(path) || r.root == "" {
		return path
	}
	return filepath.Join(r.root, path)
}

func (r *Reader) relative(pattern, match string) string {
	if filepath.IsAbs(pattern) || r.root == "" {
		return match
	}
	if rel, err := filepath.Rel(r.root, match); err == nil {
		return rel
	}
	return match
}
