package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundler/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/linear"    //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/transform" //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/bundler/internal/engine/coordinator"
	"go.trai.ch/bundler/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			linear.NodeID,
			scheduler.NodeID,
			telemetry.TracerNodeID,
			watcher.NodeID,
			fs.ResolverNodeID,
			fs.ScannerNodeID,
			fs.HasherNodeID,
			fs.WriterNodeID,
			cas.NodeID,
			transform.NodeID,
			metrics.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: app, Logger: log}, nil
		},
	})
}

//nolint:cyclop // one lookup per dependency
func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	renderer, err := graft.Dep[ports.Renderer](ctx)
	if err != nil {
		return nil, err
	}

	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[*telemetry.OTelTracer](ctx)
	if err != nil {
		return nil, err
	}

	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.EntryResolver](ctx)
	if err != nil {
		return nil, err
	}

	scanner, err := graft.Dep[ports.ImportScanner](ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}

	writer, err := graft.Dep[ports.OutputWriter](ctx)
	if err != nil {
		return nil, err
	}

	cache, err := graft.Dep[ports.ArtifactCache](ctx)
	if err != nil {
		return nil, err
	}

	builder, err := graft.Dep[ports.TargetBuilder](ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := graft.Dep[ports.Metrics](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, renderer, sched, tracer, w, coordinator.Adapters{
		Resolver: resolver,
		Scanner:  scanner,
		Hasher:   hasher,
		Cache:    cache,
		Writer:   writer,
		Builder:  builder,
		Metrics:  recorder,
		Logger:   log,
	}), nil
}
