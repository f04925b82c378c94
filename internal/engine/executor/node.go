package executor

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/domain"
)

// NodeID is the unique identifier for the executor pool Graft node.
const NodeID graft.ID = "engine.executor"

func init() {
	graft.Register(graft.Node[*Pool]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (*Pool, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return New(cfg.Workers), nil
		},
	})
}
