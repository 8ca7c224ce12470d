package coordinator

import (
	"errors"
	"slices"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/zerr"
)

// visit scans the seed modules and tracks every module they reach that is not
// tracked yet. Modules that cannot be read are skipped and reported in the
// returned error; the scans of every other module are returned regardless.
func (c *Coordinator) visit(seeds []domain.InternedString) (map[domain.InternedString]ports.ImportScan, error) {
	root := c.cfg.Root()
	external := c.cfg.External()
	scans := make(map[domain.InternedString]ports.ImportScan)
	failed := make(map[domain.InternedString]bool)
	var errs []error

	queue := slices.Clone(seeds)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if _, done := scans[key]; done || failed[key] {
			continue
		}

		file := domain.ModulePath(root, key)
		if !c.graph.HasModule(key) {
			if err := c.track(key, file); err != nil {
				failed[key] = true
				errs = append(errs, err)
				continue
			}
		}

		scan, err := c.ports.Scanner.Scan(file, root, external)
		if err != nil {
			failed[key] = true
			errs = append(errs, err)
			continue
		}
		scans[key] = scan

		for _, imp := range scan.Imports {
			k, err := domain.ModuleKey(root, imp)
			if err != nil {
				errs = append(errs, zerr.With(err, "importer", key.String()))
				continue
			}
			if dep := domain.NewInternedString(k); !c.graph.HasModule(dep) {
				queue = append(queue, dep)
			}
		}
	}
	return scans, errors.Join(errs...)
}

func (c *Coordinator) track(key domain.InternedString, file string) error {
	fingerprint, err := c.ports.Hasher.Hash(file)
	if err != nil {
		return err
	}
	return c.graph.AddModule(domain.NewModule(key.String(), fingerprint))
}

// link replaces the dependencies of every scanned module. A module whose new
// imports would close a cycle keeps its previous dependencies.
func (c *Coordinator) link(scans map[domain.InternedString]ports.ImportScan) error {
	root := c.cfg.Root()
	keys := make([]domain.InternedString, 0, len(scans))
	for k := range scans {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, domain.InternedString.Compare)

	var errs []error
	for _, key := range keys {
		if !c.graph.HasModule(key) {
			continue
		}
		scan := scans[key]

		deps := make([]domain.InternedString, 0, len(scan.Imports)+len(scan.External))
		for _, imp := range scan.Imports {
			if k, err := domain.ModuleKey(root, imp); err == nil && c.graph.HasModule(domain.NewInternedString(k)) {
				deps = append(deps, domain.NewInternedString(k))
			}
		}
		// External imports are not bundled, but the importer waits for them
		// when they are built as targets of their own.
		for _, ext := range scan.External {
			k, err := domain.ModuleKey(root, ext)
			if err != nil {
				continue
			}
			dep := domain.NewInternedString(k)
			if c.graph.HasModule(dep) && len(c.graph.TargetsForEntry(dep)) > 0 {
				deps = append(deps, dep)
			}
		}

		if err := c.graph.SetDependencies(key, deps); err != nil {
			errs = append(errs, zerr.With(err, "module", key.String()))
			continue
		}
		c.index(key, scan.Unresolved)
	}
	return errors.Join(errs...)
}

// index records the missing imports of a module so that creating one of them
// triggers a rescan of the importer.
func (c *Coordinator) index(key domain.InternedString, unresolved []string) {
	for _, old := range c.candidates[key] {
		delete(c.unresolved[old], key)
		if len(c.unresolved[old]) == 0 {
			delete(c.unresolved, old)
		}
	}
	if len(unresolved) == 0 {
		delete(c.candidates, key)
		return
	}

	c.candidates[key] = slices.Clone(unresolved)
	for _, path := range unresolved {
		importers, ok := c.unresolved[path]
		if !ok {
			importers = make(map[domain.InternedString]struct{})
			c.unresolved[path] = importers
		}
		importers[key] = struct{}{}
	}
}
