// Package coordinator owns the dependency graph of a project. It discovers
// modules and targets, turns file change batches into pending targets and runs
// generations through the scheduler.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/bundler/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// Adapters are the ports the coordinator drives.
type Adapters struct {
	Resolver ports.EntryResolver
	Scanner  ports.ImportScanner
	Hasher   ports.Hasher
	Cache    ports.ArtifactCache
	Writer   ports.OutputWriter
	Builder  ports.TargetBuilder
	Metrics  ports.Metrics
	Logger   ports.Logger
}

// Coordinator is the single owner of the graph. Discover, Build and Watch must
// be called from one goroutine. Lookup is safe for concurrent use.
type Coordinator struct {
	cfg       *domain.Config
	graph     *domain.Graph
	scheduler *scheduler.Scheduler
	ports     Adapters

	generation int
	nextOrder  int
	// fromPattern holds targets created for entry pattern matches. They go away
	// with their entry file; targets of literal entries stay and fail instead.
	fromPattern map[domain.InternedString]bool
	// unresolved maps candidate paths of missing imports to their importers.
	unresolved map[string]map[domain.InternedString]struct{}
	candidates map[domain.InternedString][]string

	mu        sync.RWMutex
	artifacts map[string]*domain.Artifact
}

// New creates a coordinator for the project described by cfg.
func New(cfg *domain.Config, sched *scheduler.Scheduler, adapters Adapters) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		graph:       domain.NewGraph(cfg.Root()),
		scheduler:   sched,
		ports:       adapters,
		fromPattern: make(map[domain.InternedString]bool),
		unresolved:  make(map[string]map[domain.InternedString]struct{}),
		candidates:  make(map[domain.InternedString][]string),
		artifacts:   make(map[string]*domain.Artifact),
	}
}

// Graph returns the dependency graph. It must only be used from the goroutine
// driving the coordinator.
func (c *Coordinator) Graph() *domain.Graph {
	return c.graph
}

// Discover resolves the entry points and bundles, tracks every module they
// reach and registers the build targets. Cycles are reported here, before
// anything is built.
func (c *Coordinator) Discover(_ context.Context) error {
	if err := c.ports.Builder.Validate(c.cfg); err != nil {
		return err
	}

	root := c.cfg.Root()
	entryPoints := c.cfg.EntryPoints()
	var targets []*domain.BuildTarget

	if len(entryPoints) > 0 {
		paths, err := c.ports.Resolver.ResolveEntries(entryPoints, root)
		if err != nil {
			return err
		}
		literals := literalEntries(entryPoints)
		for _, p := range paths {
			t, err := c.entryTarget(p)
			if err != nil {
				return err
			}
			if !literals[t.Entries[0].String()] {
				c.fromPattern[t.ID] = true
			}
			targets = append(targets, t)
		}
	}

	for _, b := range c.cfg.Bundles() {
		paths, err := c.ports.Resolver.ResolveEntries(b.Entries, root)
		if err != nil {
			return zerr.With(err, "bundle", b.Name)
		}
		if len(paths) == 0 {
			return zerr.With(zerr.Wrap(domain.ErrEntryNotFound, "bundle has no entries"), "bundle", b.Name)
		}
		keys := make([]string, len(paths))
		for i, p := range paths {
			if keys[i], err = domain.ModuleKey(root, p); err != nil {
				return err
			}
		}
		t := domain.NewBuildTarget(b.Name, keys, c.order())
		t.DependsOn = domain.NewInternedStrings(b.DependsOn)
		targets = append(targets, t)
	}

	if len(targets) == 0 {
		return domain.ErrNoEntryPoints
	}

	seeds := make([]domain.InternedString, 0, len(targets))
	for _, t := range targets {
		seeds = append(seeds, t.Entries...)
	}
	scans, err := c.visit(seeds)
	if err != nil {
		return err
	}

	for _, t := range targets {
		if err := c.graph.AddTarget(t); err != nil {
			return err
		}
	}
	if err := c.link(scans); err != nil {
		return err
	}
	if err := c.graph.ValidateTargets(); err != nil {
		return err
	}

	c.ports.Logger.Debug(fmt.Sprintf("discovered %d modules and %d targets", c.graph.ModuleCount(), len(targets)))
	return nil
}

// entryTarget derives the target built from one entry file.
func (c *Coordinator) entryTarget(file string) (*domain.BuildTarget, error) {
	key, err := domain.ModuleKey(c.cfg.Root(), file)
	if err != nil {
		return nil, err
	}
	ext, err := c.ports.Builder.OutputExtension(file, c.cfg)
	if err != nil {
		return nil, zerr.With(err, "entry", key)
	}
	return domain.NewBuildTarget(outputName(key, ext), []string{key}, c.order()), nil
}

func (c *Coordinator) order() int {
	o := c.nextOrder
	c.nextOrder++
	return o
}

// outputName is the entry base name with its extension replaced by ext.
func outputName(key, ext string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base)) + ext
}

func literalEntries(entryPoints []string) map[string]bool {
	out := make(map[string]bool, len(entryPoints))
	for _, e := range entryPoints {
		if !domain.IsPattern(e) {
			out[strings.TrimPrefix(filepath.ToSlash(filepath.Clean(e)), "./")] = true
		}
	}
	return out
}

// Build runs one generation over every target that is not ready.
// The returned error covers cancellation and output writes; target failures
// are in the report.
func (c *Coordinator) Build(ctx context.Context) (*domain.Report, error) {
	return c.generate(ctx, c.unfinished(), nil)
}

// Watch builds every target that is not ready, then rebuilds the targets each
// change batch affects until ctx is done or changes is closed. Build failures
// never end the loop; onReport receives every generation's report.
func (c *Coordinator) Watch(ctx context.Context, changes <-chan []string, onReport func(*domain.Report)) error {
	targets := c.unfinished()
	for {
		for len(targets) > 0 {
			report, err := c.generate(ctx, targets, changes)
			if onReport != nil {
				onReport(report)
			}
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				c.ports.Logger.Error(err)
			}
			targets = c.lookupTargets(domain.NewInternedStrings(report.Pending))
		}

		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			targets = c.lookupTargets(c.ingest(batch))
		}
	}
}

func (c *Coordinator) generate(ctx context.Context, targets []*domain.BuildTarget, changes <-chan []string) (*domain.Report, error) {
	c.generation++
	report, runErr := c.scheduler.Run(ctx, &scheduler.Generation{
		Number:  c.generation,
		Graph:   c.graph,
		Targets: targets,
		Config:  c.cfg,
		Changes: changes,
		Ingest:  c.ingest,
	})

	writeErr := c.publish(report.Artifacts)

	c.ports.Metrics.ObserveGeneration(report)
	if err := c.ports.Metrics.Flush(c.cfg.Root()); err != nil {
		c.ports.Logger.Warn("failed to write metrics: " + err.Error())
	}
	return report, errors.Join(runErr, writeErr)
}

// publish writes artifacts to the output directory and makes them available to Lookup.
func (c *Coordinator) publish(artifacts []*domain.Artifact) error {
	var errs []error
	for _, a := range artifacts {
		if err := c.ports.Writer.Write(c.cfg.OutDirPath(), a); err != nil {
			errs = append(errs, zerr.With(err, "target", a.Target))
			continue
		}
		c.mu.Lock()
		c.artifacts[c.servePath(a.Path)] = a
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// unpublish removes the artifact of a target that no longer exists.
func (c *Coordinator) unpublish(id domain.InternedString) {
	if err := c.ports.Writer.Remove(c.cfg.OutDirPath(), id.String()); err != nil {
		c.ports.Logger.Warn("failed to remove output of " + id.String() + ": " + err.Error())
	}
	if err := c.ports.Cache.Invalidate(c.cfg.Root(), id.String()); err != nil {
		c.ports.Logger.Warn("failed to invalidate cache of " + id.String() + ": " + err.Error())
	}
	c.mu.Lock()
	delete(c.artifacts, c.servePath(id.String()))
	c.mu.Unlock()
}

// servePath is the artifact path relative to the serve directory, slash separated.
func (c *Coordinator) servePath(output string) string {
	abs := filepath.Join(c.cfg.OutDirPath(), filepath.FromSlash(output))
	rel, err := filepath.Rel(c.cfg.ServeDirPath(), abs)
	if err != nil {
		return filepath.ToSlash(output)
	}
	return filepath.ToSlash(rel)
}

// Lookup returns the last successfully built artifact served at path, relative
// to the serve directory. Targets that failed since keep their previous artifact.
func (c *Coordinator) Lookup(p string) (*domain.Artifact, bool) {
	key := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.artifacts[key]
	return a, ok
}

func (c *Coordinator) unfinished() []*domain.BuildTarget {
	var out []*domain.BuildTarget
	for _, t := range c.graph.Targets() {
		if t.Status != domain.StatusReady {
			out = append(out, t)
		}
	}
	return out
}

func (c *Coordinator) lookupTargets(ids []domain.InternedString) []*domain.BuildTarget {
	out := make([]*domain.BuildTarget, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.graph.Target(id); ok {
			out = append(out, t)
		}
	}
	return out
}
