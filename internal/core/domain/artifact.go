package domain

import "time"

// Artifact is the built output of one BuildTarget.
type Artifact struct {
	// Target is the ID of the target that produced the artifact.
	Target string `json:"target"`
	// Path is the artifact path relative to the output directory.
	Path string `json:"path"`
	// Contents are the artifact bytes.
	Contents []byte `json:"contents"`
	// Fingerprint is the content fingerprint of Contents.
	Fingerprint string `json:"fingerprint"`
}

// NewArtifact creates an artifact and fingerprints its contents.
func NewArtifact(target, path string, contents []byte) *Artifact {
	return &Artifact{
		Target:      target,
		Path:        path,
		Contents:    contents,
		Fingerprint: ContentFingerprint(contents),
	}
}

// CacheEntry is the cached artifact of a target for one input fingerprint.
type CacheEntry struct {
	TargetID    string    `json:"targetId"`
	Fingerprint string    `json:"fingerprint"`
	Artifact    Artifact  `json:"artifact"`
	Timestamp   time.Time `json:"timestamp"`
}

// Unit is a piece of content flowing through a transform pipeline.
type Unit struct {
	// Path is the source file the unit originates from.
	Path string
	// Contents holds the current bytes. Nil means the file at Path has not been read yet.
	Contents []byte
	// Loader describes how Contents should be interpreted.
	Loader Loader
}

// BuildRequest is what a worker needs to produce a target's artifact.
type BuildRequest struct {
	// Target is the target ID.
	Target string
	// Output is the artifact path relative to the output directory.
	Output string
	// Entries are the absolute paths of the entry modules, in concatenation order.
	Entries []string
	// Config is the shared immutable configuration.
	Config *Config
}
