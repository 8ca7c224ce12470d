package ports

import (
	"time"

	"go.trai.ch/bundler/internal/core/domain"
)

// Metrics defines the interface for recording build metrics.
//
//go:generate go run go.uber.org/mock/mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	// ObserveTarget records the outcome of one target within a generation.
	ObserveTarget(target string, outcome domain.Outcome, d time.Duration)

	// ObserveGeneration records a finished generation.
	ObserveGeneration(report *domain.Report)

	// Flush writes the collected metrics below root.
	Flush(root string) error
}
