// Package app implements the application layer for bundler.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/bundler/internal/adapters/linear"
	"go.trai.ch/bundler/internal/adapters/telemetry"
	"go.trai.ch/bundler/internal/adapters/watcher"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/bundler/internal/engine/coordinator"
	"go.trai.ch/bundler/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	renderer     ports.Renderer
	scheduler    *scheduler.Scheduler
	tracer       *telemetry.OTelTracer
	watcher      ports.Watcher
	adapters     coordinator.Adapters

	dir      string
	debounce time.Duration
	onReport func(*domain.Report)

	mu    sync.RWMutex
	coord *coordinator.Coordinator
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	renderer ports.Renderer,
	sched *scheduler.Scheduler,
	tracer *telemetry.OTelTracer,
	w ports.Watcher,
	adapters coordinator.Adapters,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		renderer:     renderer,
		scheduler:    sched,
		tracer:       tracer,
		watcher:      w,
		adapters:     adapters,
		dir:          ".",
		debounce:     watcher.DefaultDebounceWindow,
	}
}

// WithDir makes the app look for bundler.yaml from dir instead of the
// working directory.
func (a *App) WithDir(dir string) *App {
	a.dir = dir
	return a
}

// WithOutput redirects build progress output to a linear renderer writing
// to stdout and stderr.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.renderer = linear.NewRenderer(stdout, stderr)
	return a
}

// WithDebounce sets the window used to coalesce file events in watch mode.
func (a *App) WithDebounce(d time.Duration) *App {
	a.debounce = d
	return a
}

// WithReportHook registers a function called with the report of every generation.
func (a *App) WithReportHook(fn func(*domain.Report)) *App {
	a.onReport = fn
	return a
}

// ConfigureLogging switches the logger between pretty and JSON output and
// toggles debug messages. Loggers without these knobs are left alone.
func (a *App) ConfigureLogging(json, verbose bool) {
	if l, ok := a.logger.(interface{ SetJSON(bool) }); ok {
		l.SetJSON(json)
	}
	if l, ok := a.logger.(interface{ SetVerbose(bool) }); ok {
		l.SetVerbose(verbose)
	}
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	Watch       bool
	Deploy      bool
	Concurrency int
}

// Build loads the project and builds every target. In watch mode it keeps
// rebuilding the targets affected by file changes until ctx is done; build
// failures are logged and never end the loop. Otherwise the returned error
// wraps domain.ErrBuildFailed when any target failed.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	// 1. Load the configuration
	cfg, err := a.configLoader.Load(a.dir, domain.Flags{
		Watch:       opts.Watch,
		Deploy:      opts.Deploy,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	a.logger.Debug(fmt.Sprintf("building %s in %s mode", cfg.Root(), cfg.Mode()))

	// 2. Initialize telemetry
	// Spans reach the renderer through the bridge; span output is streamed
	// to it by the tracer.
	renderer := a.renderer
	tp := telemetry.SetupProvider(telemetry.NewBridge(renderer))
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()
	a.tracer.WithProvider(tp).WithRenderer(renderer)

	// 3. Discover modules and targets
	coord := coordinator.New(cfg, a.scheduler, a.adapters)
	if err := coord.Discover(ctx); err != nil {
		return zerr.Wrap(err, "failed to discover build targets")
	}
	a.mu.Lock()
	a.coord = coord
	a.mu.Unlock()

	// 4. Run renderer and builds concurrently
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()

		if opts.Watch {
			return a.watch(ctx, cfg, coord)
		}

		report, err := coord.Build(ctx)
		a.report(report)
		return errors.Join(err, report.Err())
	})

	return g.Wait()
}

// watch feeds debounced file events to the coordinator until ctx is done.
func (a *App) watch(ctx context.Context, cfg *domain.Config, coord *coordinator.Coordinator) error {
	ignore := []string{filepath.FromSlash(cfg.OutDir()), domain.DefaultBundlerPath()}
	if err := a.watcher.Start(ctx, cfg.Root(), ignore); err != nil {
		return err
	}

	done := make(chan struct{})
	changes := make(chan []string)
	debouncer := watcher.NewDebouncer(a.debounce, func(paths []string) {
		select {
		case changes <- paths:
		case <-done:
		}
	})

	var wg sync.WaitGroup
	wg.Go(func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	})

	a.logger.Info("watching " + cfg.Root() + " for changes")
	err := coord.Watch(ctx, changes, a.report)

	close(done)
	_ = a.watcher.Stop()
	wg.Wait()
	return err
}

// report logs the outcome of one generation.
func (a *App) report(r *domain.Report) {
	if r == nil {
		return
	}
	if a.onReport != nil {
		a.onReport(r)
	}

	for _, f := range r.Failed {
		a.logger.Error(zerr.Wrap(domain.TransformFailure(f.Target, f.Err), "failed to build "+f.Target))
	}
	if len(r.Skipped) > 0 {
		a.logger.Warn("skipped " + strings.Join(r.Skipped, ", ") + " after failed dependencies")
	}

	a.logger.Info(fmt.Sprintf("generation %d: %d built, %d cached, %d failed, %d skipped in %s",
		r.Generation, len(r.Built), len(r.Cached), len(r.Failed), len(r.Skipped),
		r.Duration.Round(time.Millisecond)))
}

// Lookup returns the latest artifact served at path, relative to the serve
// directory. It is safe to call while a build or watch is running.
func (a *App) Lookup(path string) (*domain.Artifact, bool) {
	a.mu.RLock()
	coord := a.coord
	a.mu.RUnlock()
	if coord == nil {
		return nil, false
	}
	return coord.Lookup(path)
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// All also removes the output directory and the state directory.
	All bool
}

// Clean removes the output cache and, with All, every generated file.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	root, err := a.configLoader.DiscoverRoot(a.dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	var errs error

	// Helper to remove a directory and log the action
	remove := func(name string, fn func() error) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := fn(); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	remove("output cache", func() error {
		return a.adapters.Cache.Clear(root)
	})

	if options.All {
		cfg, err := a.configLoader.Load(root, domain.Flags{})
		if err != nil {
			return errors.Join(errs, zerr.Wrap(err, "failed to load configuration"))
		}
		remove("output directory", func() error {
			return a.adapters.Writer.Clean(cfg.OutDirPath())
		})
		remove("state directory", func() error {
			return a.adapters.Writer.Clean(filepath.Join(root, domain.DefaultBundlerPath()))
		})
	}

	return errs
}
