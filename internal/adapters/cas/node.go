package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundler/internal/core/ports"
)

// NodeID is the unique identifier for the artifact cache Graft node.
const NodeID graft.ID = "adapter.artifact_cache"

func init() {
	graft.Register(graft.Node[ports.ArtifactCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ArtifactCache, error) {
			return NewStore(), nil
		},
	})
}
