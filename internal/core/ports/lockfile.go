package ports

import "go.trai.ch/forge/internal/core/domain"

// LockfileStore persists lockfiles.
//
//go:generate mockgen -source=lockfile.go -destination=mocks/mock_lockfile.go -package=mocks
type LockfileStore interface {
	// Exists reports whether a lockfile is present.
	Exists() (bool, error)

	// Load reads the lockfile. Missing and malformed files return distinct errors.
	Load() (*domain.Lockfile, error)

	// Save writes the lockfile atomically.
	Save(lf *domain.Lockfile) error

	// Path returns the lockfile location.
	Path() string
}
