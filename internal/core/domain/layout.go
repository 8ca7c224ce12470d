package domain

import "path/filepath"

const (
	// BundlerDirName is the name of the internal state directory.
	BundlerDirName = ".bundler"

	// CacheDirName is the name of the output cache directory.
	CacheDirName = "cache"

	// MetricsFileName is the name of the prometheus textfile written after each generation.
	MetricsFileName = "metrics.prom"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "bundler.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultBundlerPath returns the state directory relative to the project root.
func DefaultBundlerPath() string {
	return BundlerDirName
}

// DefaultCachePath returns the output cache directory relative to the project root.
// It joins .bundler and cache.
func DefaultCachePath() string {
	return filepath.Join(BundlerDirName, CacheDirName)
}

// DefaultMetricsPath returns the metrics textfile path relative to the project root.
// It joins .bundler and metrics.prom.
func DefaultMetricsPath() string {
	return filepath.Join(BundlerDirName, MetricsFileName)
}
