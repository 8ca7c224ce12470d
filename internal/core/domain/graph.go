// Package domain contains the core domain models of the incremental build engine.
package domain

import (
	"cmp"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Graph tracks source modules, their import edges, and the build targets
// assembled from them.
//
// It is not safe for concurrent use. The coordinator owns the graph and is the
// only goroutine that reads or mutates it.
type Graph struct {
	root       string
	modules    map[InternedString]*Module
	dependents map[InternedString]map[InternedString]struct{}

	targets        map[InternedString]*BuildTarget
	byEntry        map[InternedString][]InternedString
	explicitDeps   map[InternedString][]InternedString
	targetDepsMemo map[InternedString][]InternedString
}

// NewGraph creates an empty graph for the project at root.
func NewGraph(root string) *Graph {
	return &Graph{
		root:         root,
		modules:      make(map[InternedString]*Module),
		dependents:   make(map[InternedString]map[InternedString]struct{}),
		targets:      make(map[InternedString]*BuildTarget),
		byEntry:      make(map[InternedString][]InternedString),
		explicitDeps: make(map[InternedString][]InternedString),
	}
}

// Root returns the project root the module keys are relative to.
func (g *Graph) Root() string {
	return g.root
}

// AddModule starts tracking a module. Its dependencies are recorded separately.
func (g *Graph) AddModule(m Module) error {
	if _, exists := g.modules[m.Key]; exists {
		return zerr.With(ErrModuleAlreadyExists, "module", m.Key.String())
	}
	m.Dependencies = nil
	g.modules[m.Key] = &m
	return nil
}

// HasModule reports whether key is tracked.
func (g *Graph) HasModule(key InternedString) bool {
	_, ok := g.modules[key]
	return ok
}

// Module returns a copy of the tracked module.
func (g *Graph) Module(key InternedString) (Module, bool) {
	m, ok := g.modules[key]
	if !ok {
		return Module{}, false
	}
	return m.clone(), true
}

// Modules returns the keys of every tracked module, sorted.
func (g *Graph) Modules() []InternedString {
	out := make([]InternedString, 0, len(g.modules))
	for k := range g.modules {
		out = append(out, k)
	}
	slices.SortFunc(out, InternedString.Compare)
	return out
}

// ModuleCount returns the number of tracked modules.
func (g *Graph) ModuleCount() int {
	return len(g.modules)
}

// SetFingerprint updates a module's content fingerprint and reports whether it changed.
func (g *Graph) SetFingerprint(key InternedString, fingerprint string) (bool, error) {
	m, ok := g.modules[key]
	if !ok {
		return false, zerr.With(ErrModuleNotFound, "module", key.String())
	}
	if m.Fingerprint == fingerprint {
		return false, nil
	}
	m.Fingerprint = fingerprint
	return true, nil
}

// SetOutputFingerprint records the last-known output fingerprint of an entry module.
func (g *Graph) SetOutputFingerprint(key InternedString, fingerprint string) {
	if m, ok := g.modules[key]; ok {
		m.OutputFingerprint = fingerprint
	}
}

// RemoveModule stops tracking a module and drops every edge touching it.
// It returns the modules that imported it.
func (g *Graph) RemoveModule(key InternedString) ([]InternedString, error) {
	m, ok := g.modules[key]
	if !ok {
		return nil, zerr.With(ErrModuleNotFound, "module", key.String())
	}

	for _, dep := range m.Dependencies {
		delete(g.dependents[dep], key)
	}

	importers := g.sortedKeys(g.dependents[key])
	for _, p := range importers {
		parent := g.modules[p]
		parent.Dependencies = slices.DeleteFunc(parent.Dependencies, func(d InternedString) bool {
			return d == key
		})
	}

	delete(g.dependents, key)
	delete(g.modules, key)
	g.targetDepsMemo = nil
	return importers, nil
}

// RecordDependency registers the edge from -> to.
// It fails with ErrCycleDetected if the edge would close a cycle, leaving the graph unchanged.
func (g *Graph) RecordDependency(from, to InternedString) error {
	src, ok := g.modules[from]
	if !ok {
		return zerr.With(ErrModuleNotFound, "module", from.String())
	}
	if _, ok := g.modules[to]; !ok {
		return zerr.With(ErrModuleNotFound, "module", to.String())
	}
	if slices.Contains(src.Dependencies, to) {
		return nil
	}
	if err := g.checkEdge(from, to); err != nil {
		return err
	}

	g.addEdge(src, to)
	g.targetDepsMemo = nil
	return nil
}

// SetDependencies replaces the dependency list of a module.
// Either every edge is applied or, on error, none is.
func (g *Graph) SetDependencies(from InternedString, deps []InternedString) error {
	src, ok := g.modules[from]
	if !ok {
		return zerr.With(ErrModuleNotFound, "module", from.String())
	}

	unique := make([]InternedString, 0, len(deps))
	seen := make(map[InternedString]struct{}, len(deps))
	for _, d := range deps {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if _, ok := g.modules[d]; !ok {
			return zerr.With(zerr.With(ErrModuleNotFound, "module", d.String()), "importer", from.String())
		}
		if !slices.Contains(src.Dependencies, d) {
			if err := g.checkEdge(from, d); err != nil {
				return err
			}
		}
		unique = append(unique, d)
	}

	for _, d := range src.Dependencies {
		delete(g.dependents[d], from)
	}
	src.Dependencies = src.Dependencies[:0]
	for _, d := range unique {
		g.addEdge(src, d)
	}
	g.targetDepsMemo = nil
	return nil
}

func (g *Graph) addEdge(src *Module, to InternedString) {
	src.Dependencies = append(src.Dependencies, to)
	set, ok := g.dependents[to]
	if !ok {
		set = make(map[InternedString]struct{})
		g.dependents[to] = set
	}
	set[src.Key] = struct{}{}
}

// checkEdge fails if from is reachable from to, i.e. if from -> to would close a cycle.
func (g *Graph) checkEdge(from, to InternedString) error {
	if from == to {
		return zerr.With(ErrCycleDetected, "cycle", from.String()+" -> "+to.String())
	}

	parent := map[InternedString]InternedString{to: to}
	stack := []InternedString{to}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.modules[cur].Dependencies {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if next == from {
				return g.buildCycleError(parent, from, to)
			}
			stack = append(stack, next)
		}
	}
	return nil
}

// buildCycleError renders the cycle from -> to -> ... -> from.
func (g *Graph) buildCycleError(parent map[InternedString]InternedString, from, to InternedString) error {
	path := []string{from.String()}
	for cur := from; cur != to; cur = parent[cur] {
		path = append(path, parent[cur].String())
	}
	path = append(path, from.String())
	// path is from, ..., to collected backwards from `from`; reverse the middle.
	slices.Reverse(path[1 : len(path)-1])
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(path, " -> "))
}

// Dependents returns the modules that import key, sorted by key.
func (g *Graph) Dependents(key InternedString) []InternedString {
	return g.sortedKeys(g.dependents[key])
}

// Closure returns every module reachable from entries, entries included,
// in depth-first preorder following declaration order.
func (g *Graph) Closure(entries []InternedString) []InternedString {
	seen := make(map[InternedString]struct{})
	var out []InternedString

	var visit func(k InternedString)
	visit = func(k InternedString) {
		if _, ok := seen[k]; ok {
			return
		}
		m, ok := g.modules[k]
		if !ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
		for _, d := range m.Dependencies {
			visit(d)
		}
	}

	for _, e := range entries {
		visit(e)
	}
	return out
}

// AddTarget registers a build target. Its entry modules must already be tracked.
func (g *Graph) AddTarget(t *BuildTarget) error {
	if _, exists := g.targets[t.ID]; exists {
		return zerr.With(ErrTargetAlreadyExists, "target", t.ID.String())
	}
	for _, e := range t.Entries {
		if _, ok := g.modules[e]; !ok {
			return zerr.With(zerr.With(ErrModuleNotFound, "module", e.String()), "target", t.ID.String())
		}
	}

	g.targets[t.ID] = t
	for _, e := range t.Entries {
		g.byEntry[e] = append(g.byEntry[e], t.ID)
	}
	for _, dep := range t.DependsOn {
		g.explicitDeps[dep] = append(g.explicitDeps[dep], t.ID)
	}
	g.targetDepsMemo = nil
	return nil
}

// RemoveTarget drops a build target.
func (g *Graph) RemoveTarget(id InternedString) error {
	t, ok := g.targets[id]
	if !ok {
		return zerr.With(ErrTargetNotFound, "target", id.String())
	}

	for _, e := range t.Entries {
		g.byEntry[e] = slices.DeleteFunc(g.byEntry[e], func(x InternedString) bool { return x == id })
		if len(g.byEntry[e]) == 0 {
			delete(g.byEntry, e)
		}
	}
	for _, dep := range t.DependsOn {
		g.explicitDeps[dep] = slices.DeleteFunc(g.explicitDeps[dep], func(x InternedString) bool { return x == id })
		if len(g.explicitDeps[dep]) == 0 {
			delete(g.explicitDeps, dep)
		}
	}
	delete(g.targets, id)
	g.targetDepsMemo = nil
	return nil
}

// Target returns the build target with the given ID.
func (g *Graph) Target(id InternedString) (*BuildTarget, bool) {
	t, ok := g.targets[id]
	return t, ok
}

// Targets returns all build targets in declaration order.
func (g *Graph) Targets() []*BuildTarget {
	out := make([]*BuildTarget, 0, len(g.targets))
	for _, t := range g.targets {
		out = append(out, t)
	}
	sortTargets(out)
	return out
}

// TargetsForEntry returns the targets that use key as an entry module.
func (g *Graph) TargetsForEntry(key InternedString) []InternedString {
	return slices.Clone(g.byEntry[key])
}

// TargetDependencies returns the targets that must be ready before id builds,
// in declaration order. A target depends on every target it names explicitly and
// on every target whose entry module appears in its closure.
func (g *Graph) TargetDependencies(id InternedString) []InternedString {
	if deps, ok := g.targetDepsMemo[id]; ok {
		return deps
	}
	t, ok := g.targets[id]
	if !ok {
		return nil
	}

	set := make(map[InternedString]struct{})
	for _, dep := range t.DependsOn {
		if _, ok := g.targets[dep]; ok && dep != id {
			set[dep] = struct{}{}
		}
	}
	for _, k := range g.Closure(t.Entries) {
		if t.HasEntry(k) {
			continue
		}
		for _, other := range g.byEntry[k] {
			if other != id {
				set[other] = struct{}{}
			}
		}
	}

	deps := make([]InternedString, 0, len(set))
	for dep := range set {
		deps = append(deps, dep)
	}
	slices.SortFunc(deps, func(a, b InternedString) int {
		return cmp.Compare(g.targets[a].Order, g.targets[b].Order)
	})

	if g.targetDepsMemo == nil {
		g.targetDepsMemo = make(map[InternedString][]InternedString)
	}
	g.targetDepsMemo[id] = deps
	return deps
}

// ValidateTargets checks that every explicit target dependency exists and that
// target dependencies are acyclic.
func (g *Graph) ValidateTargets() error {
	targets := g.Targets()
	for _, t := range targets {
		for _, dep := range t.DependsOn {
			if _, ok := g.targets[dep]; !ok {
				return zerr.With(zerr.With(ErrMissingDependency, "target", t.ID.String()), "missing_dependency", dep.String())
			}
		}
	}

	state := make(map[InternedString]int, len(targets)) // 0: unvisited, 1: visiting, 2: done
	var path []InternedString

	var visit func(id InternedString) error
	visit = func(id InternedString) error {
		state[id] = 1
		path = append(path, id)
		for _, dep := range g.TargetDependencies(id) {
			switch state[dep] {
			case 1:
				return targetCycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[id] = 2
		path = path[:len(path)-1]
		return nil
	}

	for _, t := range targets {
		if state[t.ID] == 0 {
			if err := visit(t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func targetCycleError(path []InternedString, dep InternedString) error {
	start := slices.Index(path, dep)
	parts := Strings(path[start:])
	parts = append(parts, dep.String())
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(parts, " -> "))
}

// Affected returns every build target whose transitive closure contains one of
// the changed modules, plus the targets that explicitly depend on those, in
// declaration order. It walks reverse edges from the changed modules, so its cost
// is proportional to the affected part of the graph.
func (g *Graph) Affected(changed []InternedString) []*BuildTarget {
	visited := make(map[InternedString]struct{})
	queue := make([]InternedString, 0, len(changed))
	for _, k := range changed {
		if _, ok := g.modules[k]; !ok {
			continue
		}
		if _, ok := visited[k]; ok {
			continue
		}
		visited[k] = struct{}{}
		queue = append(queue, k)
	}

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for p := range g.dependents[k] {
			if _, ok := visited[p]; !ok {
				visited[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}

	hit := make(map[InternedString]struct{})
	var pending []InternedString
	for k := range visited {
		for _, id := range g.byEntry[k] {
			if _, ok := hit[id]; !ok {
				hit[id] = struct{}{}
				pending = append(pending, id)
			}
		}
	}
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		for _, dependent := range g.explicitDeps[id] {
			if _, ok := hit[dependent]; !ok {
				hit[dependent] = struct{}{}
				pending = append(pending, dependent)
			}
		}
	}

	out := make([]*BuildTarget, 0, len(hit))
	for id := range hit {
		out = append(out, g.targets[id])
	}
	sortTargets(out)
	return out
}

// TargetFingerprint computes the transitive input fingerprint of a target: the
// content fingerprints of every module in its closure, the output fingerprints of
// its dependency targets, and salt, which carries the build configuration.
func (g *Graph) TargetFingerprint(id InternedString, salt string) (string, error) {
	t, ok := g.targets[id]
	if !ok {
		return "", zerr.With(ErrTargetNotFound, "target", id.String())
	}

	w := newDigestWriter()
	w.field(t.ID.String(), salt)
	w.section()

	for _, e := range t.Entries {
		if _, ok := g.modules[e]; !ok {
			return "", zerr.With(zerr.With(ErrModuleNotFound, "module", e.String()), "target", id.String())
		}
		w.field(e.String())
	}
	w.section()

	closure := g.Closure(t.Entries)
	slices.SortFunc(closure, InternedString.Compare)
	for _, k := range closure {
		w.field(k.String(), g.modules[k].Fingerprint)
	}
	w.section()

	for _, dep := range g.TargetDependencies(id) {
		w.field(dep.String(), g.targets[dep].OutputFingerprint)
	}

	return w.sum(), nil
}

func (g *Graph) sortedKeys(set map[InternedString]struct{}) []InternedString {
	out := make([]InternedString, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.SortFunc(out, InternedString.Compare)
	return out
}

func sortTargets(ts []*BuildTarget) {
	slices.SortFunc(ts, func(a, b *BuildTarget) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}
