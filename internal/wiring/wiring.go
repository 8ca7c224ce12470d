// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/bundler/internal/adapters/cas"
	_ "go.trai.ch/bundler/internal/adapters/config"
	_ "go.trai.ch/bundler/internal/adapters/fs"
	_ "go.trai.ch/bundler/internal/adapters/linear"
	_ "go.trai.ch/bundler/internal/adapters/logger"
	_ "go.trai.ch/bundler/internal/adapters/metrics"
	_ "go.trai.ch/bundler/internal/adapters/shell"
	_ "go.trai.ch/bundler/internal/adapters/telemetry"
	_ "go.trai.ch/bundler/internal/adapters/transform"
	_ "go.trai.ch/bundler/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/bundler/internal/app"
	_ "go.trai.ch/bundler/internal/engine/scheduler"
)
