package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrCycleDetected is returned when an edge would close a cycle in the module graph
	// or when bundle dependencies form a cycle between targets.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrModuleNotFound is returned when an operation references a module that is not tracked.
	ErrModuleNotFound = zerr.New("module not found")

	// ErrModuleAlreadyExists is returned when adding a module whose key is already tracked.
	ErrModuleAlreadyExists = zerr.New("module already exists")

	// ErrTargetNotFound is returned when a requested build target is not in the graph.
	ErrTargetNotFound = zerr.New("build target not found")

	// ErrTargetAlreadyExists is returned when two targets resolve to the same output.
	ErrTargetAlreadyExists = zerr.New("build target already exists")

	// ErrMissingDependency is returned when a bundle depends on a target that does not exist.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrInvalidTransition is returned when a build target is moved to a status
	// its current status cannot reach.
	ErrInvalidTransition = zerr.New("invalid build status transition")

	// ErrPathOutsideRoot is returned when a path resolves outside the project root.
	ErrPathOutsideRoot = zerr.New("path is outside project root")

	// ErrTransformFailure is returned when a transform fails for a single target.
	ErrTransformFailure = zerr.New("transform failed")

	// ErrUnknownTransform is returned when a pipeline names a transform that is not registered.
	ErrUnknownTransform = zerr.New("unknown transform")

	// ErrUnknownLoader is returned when a loader name is not supported.
	ErrUnknownLoader = zerr.New("unknown loader")

	// ErrInvalidPattern is returned when a glob pattern cannot be compiled.
	ErrInvalidPattern = zerr.New("invalid pattern")

	// ErrNoPipeline is returned when no pipeline matches an entry file.
	ErrNoPipeline = zerr.New("no pipeline matches entry")

	// ErrEmptyOutput is returned when a transform chain produced no bytes for an entry.
	ErrEmptyOutput = zerr.New("transform produced no output")

	// ErrCommandFailed is returned when an external command exits unsuccessfully.
	ErrCommandFailed = zerr.New("command failed")

	// ErrCacheCorruption is returned when a cache entry exists but cannot be decoded.
	// Callers treat it as a miss.
	ErrCacheCorruption = zerr.New("cache entry is corrupt")

	// ErrCacheCreateFailed is returned when the cache directory cannot be created.
	ErrCacheCreateFailed = zerr.New("failed to create cache directory")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheMarshalFailed is returned when a cache entry cannot be marshaled.
	ErrCacheMarshalFailed = zerr.New("failed to marshal cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCacheEvictFailed is returned when stale cache entries cannot be removed.
	ErrCacheEvictFailed = zerr.New("failed to evict cache entry")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no bundler.yaml is found above the working directory.
	ErrConfigNotFound = zerr.New("could not find bundler.yaml")

	// ErrInvalidConfig is returned when the configuration fails validation.
	ErrInvalidConfig = zerr.New("invalid configuration")

	// ErrNoEntryPoints is returned when the configuration declares nothing to build.
	ErrNoEntryPoints = zerr.New("no entry points configured")

	// ErrEntryNotFound is returned when a literal entry point does not exist.
	ErrEntryNotFound = zerr.New("entry point not found")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrScanFailed is returned when a module's imports cannot be scanned.
	ErrScanFailed = zerr.New("failed to scan imports")

	// ErrOutputWriteFailed is returned when an artifact cannot be written to the output directory.
	ErrOutputWriteFailed = zerr.New("failed to write output")

	// ErrWatcherStartFailed is returned when the file watcher cannot be started.
	ErrWatcherStartFailed = zerr.New("failed to start file watcher")

	// ErrMetricsWriteFailed is returned when the metrics textfile cannot be written.
	ErrMetricsWriteFailed = zerr.New("failed to write metrics")

	// ErrBuildFailed is returned when a one-shot build leaves at least one target failed.
	ErrBuildFailed = zerr.New("build failed")
)

// TransformFailure classifies the error of a failed target as ErrTransformFailure
// and tags it with the target. The cause stays in the chain next to the sentinel,
// so errors.Is matches both.
func TransformFailure(target string, cause error) error {
	if cause == nil {
		cause = ErrTransformFailure
	}
	// With copies a *zerr.Error, so the metadata goes on an empty wrapper to
	// keep the sentinel itself in the chain.
	if errors.Is(cause, ErrTransformFailure) {
		return zerr.With(zerr.Wrap(cause, ""), "target", target)
	}
	return zerr.With(zerr.Wrap(classified{cause}, ErrTransformFailure.Error()), "target", target)
}

// classified is a cause that also unwraps to ErrTransformFailure.
type classified struct {
	cause error
}

func (c classified) Error() string { return c.cause.Error() }

func (c classified) Unwrap() []error { return []error{ErrTransformFailure, c.cause} }
