package ports

import "go.trai.ch/bundler/internal/core/domain"

// ConfigLoader defines the interface for loading the build configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds bundler.yaml at or above cwd and combines it with flags into
	// the immutable configuration of this invocation.
	Load(cwd string, flags domain.Flags) (*domain.Config, error)

	// DiscoverRoot walks up from cwd to the directory containing bundler.yaml.
	DiscoverRoot(cwd string) (string, error)
}
