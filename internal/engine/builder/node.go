package builder

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/cas"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/fs"         //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger"     //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/shell"      //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/telemetry"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/executor"
)

// NodeID is the unique identifier for the incremental builder Graft node.
const NodeID graft.ID = "engine.builder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.HasherNodeID,
			cas.NodeID,
			cas.SnapshotNodeID,
			shell.NodeID,
			executor.NodeID,
			telemetry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			hasher, err := graft.Dep[ports.ContentHasher](ctx)
			if err != nil {
				return nil, err
			}
			cache, err := graft.Dep[ports.ArtifactCache](ctx)
			if err != nil {
				return nil, err
			}
			snapshots, err := graft.Dep[ports.SnapshotStore](ctx)
			if err != nil {
				return nil, err
			}
			compiler, err := graft.Dep[ports.Compiler](ctx)
			if err != nil {
				return nil, err
			}
			pool, err := graft.Dep[*executor.Pool](ctx)
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
			return New(hasher, cache, snapshots, compiler, pool, tracer, log), nil
		},
	})
}
