package ports

import "go.trai.ch/bundler/internal/core/domain"

// OutputWriter defines the interface for materializing artifacts on disk.
//
//go:generate go run go.uber.org/mock/mockgen -source=writer.go -destination=mocks/mock_writer.go -package=mocks
type OutputWriter interface {
	// Write stores the artifact below dir. It skips the write if the file
	// already holds the same bytes.
	Write(dir string, artifact *domain.Artifact) error

	// Remove deletes the artifact at the path relative to dir, if present.
	Remove(dir, path string) error

	// Clean removes dir and everything below it.
	Clean(dir string) error
}
