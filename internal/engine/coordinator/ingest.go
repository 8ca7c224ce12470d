package coordinator

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/bundler/internal/core/domain"
)

// changeSet collects what one batch of paths did to the graph.
type changeSet struct {
	// changed are modules whose content or imports changed.
	changed map[domain.InternedString]struct{}
	// rescan are modules to scan again, tracking them first if needed.
	rescan map[domain.InternedString]struct{}
	// targets are invalidated directly, whatever their modules did.
	targets map[domain.InternedString]struct{}
	// added are targets for new entry pattern matches.
	added []*domain.BuildTarget
}

func newChangeSet() *changeSet {
	return &changeSet{
		changed: make(map[domain.InternedString]struct{}),
		rescan:  make(map[domain.InternedString]struct{}),
		targets: make(map[domain.InternedString]struct{}),
	}
}

func (cs *changeSet) touch(key domain.InternedString) {
	cs.changed[key] = struct{}{}
	cs.rescan[key] = struct{}{}
}

// ingest applies a batch of changed paths to the graph and returns the targets
// it moved to pending, in declaration order. Paths may be created, modified or
// removed files or directories.
func (c *Coordinator) ingest(paths []string) []domain.InternedString {
	cs := newChangeSet()
	for _, p := range paths {
		c.ingestPath(filepath.Clean(p), cs)
	}

	if len(cs.rescan) > 0 || len(cs.added) > 0 {
		seeds := make([]domain.InternedString, 0, len(cs.rescan))
		for k := range cs.rescan {
			seeds = append(seeds, k)
		}
		slices.SortFunc(seeds, domain.InternedString.Compare)

		scans, err := c.visit(seeds)
		if err != nil {
			c.ports.Logger.Warn("failed to scan changed modules: " + err.Error())
		}
		for _, t := range cs.added {
			if err := c.graph.AddTarget(t); err != nil {
				delete(c.fromPattern, t.ID)
				c.ports.Logger.Warn("skipping new entry: " + err.Error())
				continue
			}
			c.ports.Logger.Info("added target " + t.ID.String())
			cs.targets[t.ID] = struct{}{}
		}
		if err := c.link(scans); err != nil {
			c.ports.Logger.Error(err)
		}
	}

	changed := make([]domain.InternedString, 0, len(cs.changed))
	for k := range cs.changed {
		changed = append(changed, k)
	}
	hit := make(map[domain.InternedString]*domain.BuildTarget)
	for _, t := range c.graph.Affected(changed) {
		hit[t.ID] = t
	}
	for id := range cs.targets {
		if t, ok := c.graph.Target(id); ok {
			hit[id] = t
		}
	}

	targets := make([]*domain.BuildTarget, 0, len(hit))
	for _, t := range hit {
		targets = append(targets, t)
	}
	slices.SortFunc(targets, func(a, b *domain.BuildTarget) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.ID.Compare(b.ID)
	})

	ids := make([]domain.InternedString, len(targets))
	for i, t := range targets {
		c.invalidate(t)
		ids[i] = t.ID
	}
	if len(ids) > 0 {
		c.ports.Logger.Debug(fmt.Sprintf("%d changed paths invalidated %s", len(paths), strings.Join(domain.Strings(ids), ", ")))
	}
	return ids
}

// invalidate moves a target back to pending and drops its cache entry when its
// inputs no longer match the entry's fingerprint.
func (c *Coordinator) invalidate(t *domain.BuildTarget) {
	if t.Status != domain.StatusPending {
		_ = t.Transition(domain.StatusPending)
	}
	if t.Fingerprint == "" {
		return
	}
	if fp, err := c.graph.TargetFingerprint(t.ID, c.cfg.Digest()); err == nil && fp == t.Fingerprint {
		return
	}
	if err := c.ports.Cache.Invalidate(c.cfg.Root(), t.ID.String()); err != nil {
		c.ports.Logger.Warn("failed to invalidate cache of " + t.ID.String() + ": " + err.Error())
	}
}

func (c *Coordinator) ingestPath(file string, cs *changeSet) {
	key, err := domain.ModuleKey(c.cfg.Root(), file)
	if err != nil || c.ignored(key) {
		return
	}

	info, err := os.Stat(file)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		k := domain.NewInternedString(key)
		if c.graph.HasModule(k) {
			c.forget(k, cs)
			return
		}
		// A removed directory takes every module below it along.
		prefix := key + "/"
		for _, m := range c.graph.Modules() {
			if strings.HasPrefix(m.String(), prefix) {
				c.forget(m, cs)
			}
		}
	case err != nil:
		c.ports.Logger.Warn("ignoring change: " + err.Error())
	case info.IsDir():
		files, err := c.ports.Resolver.ResolveEntries([]string{key + "/**"}, c.cfg.Root())
		if err != nil {
			c.ports.Logger.Warn("ignoring changed directory " + key + ": " + err.Error())
			return
		}
		for _, f := range files {
			if k, err := domain.ModuleKey(c.cfg.Root(), f); err == nil {
				c.ingestFile(f, k, cs)
			}
		}
	default:
		c.ingestFile(file, key, cs)
	}
}

// ignored reports whether key lies in the output or state directory.
func (c *Coordinator) ignored(key string) bool {
	if key == "." {
		return true
	}
	for _, dir := range []string{filepath.ToSlash(filepath.Clean(c.cfg.OutDir())), domain.BundlerDirName} {
		if key == dir || strings.HasPrefix(key, dir+"/") {
			return true
		}
	}
	return false
}

func (c *Coordinator) ingestFile(file, key string, cs *changeSet) {
	k := domain.NewInternedString(key)

	if c.graph.HasModule(k) {
		c.ports.Hasher.Forget(file)
		fingerprint, err := c.ports.Hasher.Hash(file)
		if err != nil {
			c.ports.Logger.Warn("ignoring change: " + err.Error())
			return
		}
		if changed, _ := c.graph.SetFingerprint(k, fingerprint); changed {
			cs.touch(k)
		}
		return
	}

	for importer := range c.unresolved[file] {
		cs.touch(importer)
	}

	// The entry of an existing target came back.
	if len(c.graph.TargetsForEntry(k)) > 0 {
		cs.touch(k)
		return
	}

	if !c.matchesEntryPattern(key) {
		return
	}
	t, err := c.entryTarget(file)
	if err != nil {
		c.ports.Logger.Warn("skipping new entry " + key + ": " + err.Error())
		return
	}
	if _, exists := c.graph.Target(t.ID); exists || slices.ContainsFunc(cs.added, func(a *domain.BuildTarget) bool { return a.ID == t.ID }) {
		c.ports.Logger.Warn("skipping new entry " + key + ": target " + t.ID.String() + " already exists")
		return
	}
	c.fromPattern[t.ID] = true
	cs.added = append(cs.added, t)
	cs.rescan[k] = struct{}{}
}

func (c *Coordinator) matchesEntryPattern(key string) bool {
	var patterns []string
	for _, e := range c.cfg.EntryPoints() {
		if domain.IsPattern(e) {
			patterns = append(patterns, e)
		}
	}
	if len(patterns) == 0 {
		return false
	}
	ok, err := c.ports.Resolver.Match(patterns, key)
	return err == nil && ok
}

// forget stops tracking a removed module. Its importers are rescanned. Targets
// created for an entry pattern match are removed with their output; other
// targets of the module stay and fail until it comes back.
func (c *Coordinator) forget(key domain.InternedString, cs *changeSet) {
	c.ports.Hasher.Forget(domain.ModulePath(c.cfg.Root(), key))
	owners := c.graph.TargetsForEntry(key)

	importers, err := c.graph.RemoveModule(key)
	if err != nil {
		return
	}
	c.index(key, nil)
	delete(cs.changed, key)
	delete(cs.rescan, key)
	for _, imp := range importers {
		cs.touch(imp)
	}

	for _, id := range owners {
		if !c.fromPattern[id] {
			cs.targets[id] = struct{}{}
			continue
		}
		_ = c.graph.RemoveTarget(id)
		delete(c.fromPattern, id)
		delete(cs.targets, id)
		c.unpublish(id)
		c.ports.Logger.Info("removed target " + id.String())
	}
}
