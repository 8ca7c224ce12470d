// Package metrics records build metrics in prometheus collectors and exports
// them as a node-exporter textfile.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/zerr"
)

// Recorder implements ports.Metrics on a private prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	targets          *prometheus.CounterVec
	targetDuration   *prometheus.HistogramVec
	generations      prometheus.Counter
	failed           prometheus.Counter
	lastDuration     prometheus.Gauge
	lastGenerationTS prometheus.Gauge
}

// NewRecorder creates a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		targets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundler_target_results_total",
				Help: "Number of target results by outcome",
			},
			[]string{"target", "outcome"},
		),
		targetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundler_target_build_duration_seconds",
				Help:    "Time spent running the transform pipeline for a target",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"target"},
		),
		generations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bundler_generations_total",
				Help: "Number of build generations run",
			},
		),
		failed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bundler_generations_failed_total",
				Help: "Number of build generations with at least one failed target",
			},
		),
		lastDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundler_last_generation_duration_seconds",
				Help: "Wall time of the most recent generation",
			},
		),
		lastGenerationTS: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bundler_last_generation_end_timestamp",
				Help: "Unix timestamp of when the most recent generation ended",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveTarget counts the outcome and, for built targets, the build time.
func (r *Recorder) ObserveTarget(target string, outcome domain.Outcome, d time.Duration) {
	r.targets.WithLabelValues(target, string(outcome)).Inc()
	if outcome == domain.OutcomeBuilt || outcome == domain.OutcomeFailed {
		r.targetDuration.WithLabelValues(target).Observe(d.Seconds())
	}
}

// ObserveGeneration records a finished generation.
func (r *Recorder) ObserveGeneration(report *domain.Report) {
	if report == nil {
		return
	}
	r.generations.Inc()
	if report.HasFailures() {
		r.failed.Inc()
	}
	r.lastDuration.Set(report.Duration.Seconds())
	r.lastGenerationTS.SetToCurrentTime()
}

// Flush writes the registry to .bundler/metrics.prom below root.
func (r *Recorder) Flush(root string) error {
	path := filepath.Join(root, domain.DefaultMetricsPath())
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrMetricsWriteFailed.Error()), "path", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrMetricsWriteFailed.Error()), "path", path)
	}
	return nil
}
