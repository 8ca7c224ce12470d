package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for progress output.
// It decouples telemetry collection from presentation.
//
//go:generate go run go.uber.org/mock/mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes buffered output and stops accepting events.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called when a generation has been planned.
	// targets: target IDs in build order
	// deps: target -> targets it waits for
	OnPlanEmit(targets []string, deps map[string][]string)

	// OnTargetStart is called when a target begins building.
	OnTargetStart(spanID, parentID, name string, startTime time.Time)

	// OnTargetLog is called when a transform emits output for a target.
	OnTargetLog(spanID string, data []byte)

	// OnTargetComplete is called when a target finishes.
	// cached reports whether the artifact was served from the output cache.
	OnTargetComplete(spanID string, endTime time.Time, cached bool, err error)
}
