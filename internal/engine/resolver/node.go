package resolver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/catalog"
	"go.trai.ch/forge/internal/adapters/definition"
	"go.trai.ch/forge/internal/adapters/logger"
	"go.trai.ch/forge/internal/adapters/registry"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/ports"
)

// NodeID is the unique identifier for the resolver Graft node.
const NodeID graft.ID = "engine.resolver"

func init() {
	graft.Register(graft.Node[*Resolver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			registry.NodeID,
			catalog.NodeID,
			definition.LoaderNodeID,
			definition.ValidatorNodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Resolver, error) {
			regs, err := graft.Dep[*registry.Registries](ctx)
			if err != nil {
				return nil, err
			}
			remote, err := graft.Dep[*catalog.Client](ctx)
			if err != nil {
				return nil, err
			}
			loader, err := graft.Dep[ports.DefinitionLoader](ctx)
			if err != nil {
				return nil, err
			}
			validator, err := graft.Dep[ports.DefinitionValidator](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(Chain(regs, remote), loader, validator, tracer, log), nil
		},
	})
}

// Chain orders the enabled providers by priority: local, global, stockyard.
func Chain(regs *registry.Registries, remote *catalog.Client) []ports.SourceProvider {
	var providers []ports.SourceProvider
	if regs != nil && regs.Local != nil {
		providers = append(providers, regs.Local)
	}
	if regs != nil && regs.Global != nil {
		providers = append(providers, regs.Global)
	}
	if remote != nil {
		providers = append(providers, remote)
	}
	return providers
}
