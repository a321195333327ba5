// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// SourceProvider lists and supplies definition versions from one location.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type SourceProvider interface {
	// Kind reports which source this provider represents.
	Kind() domain.SourceKind

	// ListVersions returns every version the provider can supply for name.
	// An unknown name yields an empty list and no error.
	ListVersions(ctx context.Context, typ domain.DefinitionType, name string) ([]domain.VersionLocation, error)

	// Open returns the raw definition content for an exact version and its location.
	Open(ctx context.Context, typ domain.DefinitionType, name, version string) ([]byte, string, error)

	// List returns every definition of the given type the provider knows about.
	List(ctx context.Context, typ domain.DefinitionType) ([]domain.AvailableDefinition, error)
}
