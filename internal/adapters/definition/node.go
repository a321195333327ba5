package definition

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/core/ports"
)

const (
	// LoaderNodeID is the unique identifier for the definition loader Graft node.
	LoaderNodeID graft.ID = "adapter.definition.loader"
	// ValidatorNodeID is the unique identifier for the definition validator Graft node.
	ValidatorNodeID graft.ID = "adapter.definition.validator"
)

func init() {
	graft.Register(graft.Node[ports.DefinitionLoader]{
		ID:        LoaderNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.DefinitionLoader, error) {
			return NewLoader(), nil
		},
	})

	graft.Register(graft.Node[ports.DefinitionValidator]{
		ID:        ValidatorNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.DefinitionValidator, error) {
			return NewValidator()
		},
	})
}
