package cas

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the artifact cache Graft node.
	NodeID graft.ID = "adapter.artifact_cache"
	// SnapshotNodeID is the unique identifier for the snapshot store Graft node.
	SnapshotNodeID graft.ID = "adapter.snapshot_store"
)

func init() {
	graft.Register(graft.Node[ports.ArtifactCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ArtifactCache, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(cfg.Cache, clock.New())
		},
	})

	graft.Register(graft.Node[ports.SnapshotStore]{
		ID:        SnapshotNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.SnapshotStore, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewSnapshotStore(cfg.Cache.Dir), nil
		},
	})
}
