package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// ExternalFetcher retrieves content for external references.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type ExternalFetcher interface {
	// Available reports whether the integration is configured.
	Available() bool

	// Fetch returns the content behind ref.
	Fetch(ctx context.Context, ref domain.ExternalReference) (string, error)
}
