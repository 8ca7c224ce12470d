package transform

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundler/internal/adapters/shell"
	"go.trai.ch/bundler/internal/core/ports"
)

// NodeID is the unique identifier for the target builder Graft node.
const NodeID graft.ID = "adapter.target_builder"

func init() {
	graft.Register(graft.Node[ports.TargetBuilder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID},
		Run: func(ctx context.Context) (ports.TargetBuilder, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			return NewBuilder(executor), nil
		},
	})
}
