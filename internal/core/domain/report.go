package domain

import (
	"errors"
	"time"
)

// Outcome is how a target finished within a generation.
type Outcome string

const (
	// OutcomeBuilt means the transform pipeline ran and succeeded.
	OutcomeBuilt Outcome = "built"
	// OutcomeCached means the artifact was served from the output cache.
	OutcomeCached Outcome = "cached"
	// OutcomeFailed means the transform pipeline failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means a dependency target was not ready.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeStale means the result was discarded because its inputs changed mid-build.
	OutcomeStale Outcome = "stale"
)

// TargetFailure pairs a target with the error that failed it.
type TargetFailure struct {
	Target string
	Err    error
}

// Report summarizes one generation.
type Report struct {
	Generation int
	Order      []string
	Built      []string
	Cached     []string
	Failed     []TargetFailure
	Skipped    []string
	Stale      []string
	// Pending are targets invalidated while the generation ran. They need a
	// follow-up generation.
	Pending   []string
	Artifacts []*Artifact
	Duration  time.Duration
}

// Record files a target under the given outcome.
func (r *Report) Record(target string, outcome Outcome) {
	switch outcome {
	case OutcomeBuilt:
		r.Built = append(r.Built, target)
	case OutcomeCached:
		r.Cached = append(r.Cached, target)
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, target)
	case OutcomeStale:
		r.Stale = append(r.Stale, target)
	case OutcomeFailed:
		r.Failed = append(r.Failed, TargetFailure{Target: target})
	}
}

// RecordFailure files a failed target with its cause.
func (r *Report) RecordFailure(target string, err error) {
	r.Failed = append(r.Failed, TargetFailure{Target: target, Err: err})
}

// HasFailures reports whether any target failed.
func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// Err joins every target failure under ErrBuildFailed, or returns nil.
func (r *Report) Err() error {
	if !r.HasFailures() {
		return nil
	}
	errs := []error{ErrBuildFailed}
	for _, f := range r.Failed {
		errs = append(errs, TransformFailure(f.Target, f.Err))
	}
	return errors.Join(errs...)
}
