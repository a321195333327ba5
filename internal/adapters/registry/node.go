package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/domain"
)

// NodeID is the unique identifier for the registry Graft node.
const NodeID graft.ID = "adapter.registry"

// Registries holds the filesystem providers enabled by configuration.
// Disabled registries are nil.
type Registries struct {
	Local  *Provider
	Global *Provider
}

// NewRegistries builds the providers enabled in cfg.
func NewRegistries(cfg domain.RegistryConfig) *Registries {
	r := &Registries{}
	if cfg.LocalEnabled {
		r.Local = New(domain.SourceLocal, cfg.LocalPath)
	}
	if cfg.GlobalEnabled {
		r.Global = New(domain.SourceGlobal, cfg.GlobalPath)
	}
	return r
}

func init() {
	graft.Register(graft.Node[*Registries]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (*Registries, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewRegistries(cfg.Registry), nil
		},
	})
}
