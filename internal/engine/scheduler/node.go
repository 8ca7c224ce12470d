package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundler/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/bundler/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/bundler/internal/adapters/metrics"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/bundler/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/bundler/internal/adapters/transform" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/bundler/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			transform.NodeID,
			cas.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			builder, err := graft.Dep[ports.TargetBuilder](ctx)
			if err != nil {
				return nil, err
			}

			cache, err := graft.Dep[ports.ArtifactCache](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[*telemetry.OTelTracer](ctx)
			if err != nil {
				return nil, err
			}

			recorder, err := graft.Dep[ports.Metrics](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(builder, cache, tracer, recorder, log), nil
		},
	})
}
