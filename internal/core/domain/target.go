package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// TargetStatus is the build status of a BuildTarget.
type TargetStatus string

const (
	// StatusPending indicates the target needs to be (re)built.
	StatusPending TargetStatus = "pending"
	// StatusBuilding indicates a worker is producing the target's artifact.
	StatusBuilding TargetStatus = "building"
	// StatusReady indicates the target's artifact is current.
	StatusReady TargetStatus = "ready"
	// StatusFailed indicates the last build of the target failed.
	StatusFailed TargetStatus = "failed"
)

// BuildTarget is one output bundle assembled from one or more entry modules.
type BuildTarget struct {
	// ID is the output path of the target relative to the output directory.
	ID InternedString
	// Entries are the entry module keys, in the order their outputs are concatenated.
	Entries []InternedString
	// DependsOn lists targets that must be ready before this one builds,
	// in addition to the ones derived from the module graph.
	DependsOn []InternedString
	// Order is the declaration position of the target, used to break scheduling ties.
	Order int
	// Fingerprint is the transitive input fingerprint of the last build attempt.
	Fingerprint string
	// OutputFingerprint is the content hash of the last successful artifact.
	OutputFingerprint string
	// Status is the current build status.
	Status TargetStatus
	// Err holds the failure of the last build, if any.
	Err error
}

// NewBuildTarget creates a pending target.
func NewBuildTarget(id string, entries []string, order int) *BuildTarget {
	return &BuildTarget{
		ID:      NewInternedString(id),
		Entries: NewInternedStrings(entries),
		Order:   order,
		Status:  StatusPending,
	}
}

// Transition moves the target to the given status.
//
//	pending  -> building
//	building -> ready | failed
//	any      -> pending (a dependency changed)
func (t *BuildTarget) Transition(to TargetStatus) error {
	if !t.canTransition(to) {
		return zerr.With(zerr.With(zerr.With(ErrInvalidTransition,
			"target", t.ID.String()),
			"from", string(t.Status)),
			"to", string(to))
	}

	t.Status = to
	if to != StatusFailed {
		t.Err = nil
	}
	return nil
}

func (t *BuildTarget) canTransition(to TargetStatus) bool {
	switch to {
	case StatusPending:
		return true
	case StatusBuilding:
		return t.Status == StatusPending
	case StatusReady, StatusFailed:
		return t.Status == StatusBuilding
	default:
		return false
	}
}

// Fail marks a building target as failed with the given cause.
func (t *BuildTarget) Fail(err error) error {
	if terr := t.Transition(StatusFailed); terr != nil {
		return terr
	}
	t.Err = err
	return nil
}

// HasEntry reports whether key is one of the target's entry modules.
func (t *BuildTarget) HasEntry(key InternedString) bool {
	return slices.Contains(t.Entries, key)
}

// Clone returns a copy that can be handed to a worker without sharing slices.
func (t *BuildTarget) Clone() *BuildTarget {
	c := *t
	c.Entries = slices.Clone(t.Entries)
	c.DependsOn = slices.Clone(t.DependsOn)
	return &c
}
