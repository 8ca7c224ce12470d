package ports

import (
	"context"

	"go.trai.ch/bundler/internal/core/domain"
)

// Transform is one step of a transform pipeline.
//
//go:generate go run go.uber.org/mock/mockgen -source=transform.go -destination=mocks/mock_transform.go -package=mocks
type Transform interface {
	// Name is the name pipelines refer to the transform by.
	Name() string

	// Apply turns one unit into the next. A unit with nil Contents refers to the
	// source file at its Path.
	Apply(ctx context.Context, in domain.Unit, cfg *domain.Config) (domain.Unit, error)

	// OutputLoader returns the loader of the unit Apply produces from a unit of
	// the given loader.
	OutputLoader(in domain.Loader, cfg *domain.Config) domain.Loader
}

// TargetBuilder produces the artifact of a target by running the transform
// pipeline of each of its entries.
type TargetBuilder interface {
	// Build runs the pipelines of req's entries and concatenates their output.
	// Failures carry the entry and transform they happened in.
	Build(ctx context.Context, req domain.BuildRequest) (*domain.Artifact, error)

	// OutputExtension returns the extension of the artifact built from the
	// entry at path.
	OutputExtension(path string, cfg *domain.Config) (string, error)

	// Validate checks that every pipeline of cfg compiles and names known transforms.
	Validate(cfg *domain.Config) error
}
