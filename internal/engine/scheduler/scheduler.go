// Package scheduler orders build targets and runs one generation of builds.
package scheduler

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
)

// Generation is one scheduling pass over a set of pending targets.
type Generation struct {
	// Number identifies the generation in reports.
	Number int
	// Graph is the dependency graph. It is read and mutated only by the
	// goroutine calling Run.
	Graph *domain.Graph
	// Targets are the targets to build.
	Targets []*domain.BuildTarget
	// Config is the configuration every target is built with.
	Config *domain.Config
	// Changes delivers file change batches that arrive while the generation runs.
	// It may be nil.
	Changes <-chan []string
	// Ingest applies a change batch to the graph and returns the targets it
	// invalidated. It is called on the goroutine running the generation.
	Ingest func(paths []string) []domain.InternedString
}

// Scheduler runs generations with a bounded number of workers.
//
// Workers only look up the cache and run transforms. Every graph update, cache
// write and status transition happens on the goroutine calling Run.
type Scheduler struct {
	builder ports.TargetBuilder
	cache   ports.ArtifactCache
	tracer  ports.Tracer
	metrics ports.Metrics
	logger  ports.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	builder ports.TargetBuilder,
	cache ports.ArtifactCache,
	tracer ports.Tracer,
	metrics ports.Metrics,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		builder: builder,
		cache:   cache,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Schedule returns targets in topological order: every target comes after
// the targets it depends on. Dependencies outside targets are ignored. Ties are
// broken by declaration order.
func (s *Scheduler) Schedule(g *domain.Graph, targets []*domain.BuildTarget) []*domain.BuildTarget {
	inSet := make(map[domain.InternedString]*domain.BuildTarget, len(targets))
	for _, t := range targets {
		inSet[t.ID] = t
	}

	inDegree := make(map[domain.InternedString]int, len(inSet))
	dependents := make(map[domain.InternedString][]domain.InternedString, len(inSet))
	for id := range inSet {
		for _, dep := range g.TargetDependencies(id) {
			if _, ok := inSet[dep]; ok {
				inDegree[id]++
				dependents[dep] = append(dependents[dep], id)
			}
		}
	}

	var ready []*domain.BuildTarget
	for id, t := range inSet {
		if inDegree[id] == 0 {
			ready = append(ready, t)
		}
	}

	order := make([]*domain.BuildTarget, 0, len(inSet))
	for len(ready) > 0 {
		sortByDeclaration(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		delete(inSet, next.ID)

		for _, id := range dependents[next.ID] {
			inDegree[id]--
			if inDegree[id] == 0 {
				ready = append(ready, inSet[id])
			}
		}
	}

	// Targets on a cycle never become ready. The graph rejects such cycles
	// before a generation starts; keep them rather than dropping them silently.
	if len(inSet) > 0 {
		rest := make([]*domain.BuildTarget, 0, len(inSet))
		for _, t := range inSet {
			rest = append(rest, t)
		}
		sortByDeclaration(rest)
		order = append(order, rest...)
	}
	return order
}

func sortByDeclaration(ts []*domain.BuildTarget) {
	slices.SortFunc(ts, func(a, b *domain.BuildTarget) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.ID.Compare(b.ID)
	})
}

// Run builds the generation's targets in dependency order and returns its report.
//
// A failed target does not stop unrelated targets. Its dependents stay pending
// and are reported as skipped. Results of targets invalidated by a change batch
// while they were building are discarded and reported as stale. The returned
// error is only set when ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, gen *Generation) (*domain.Report, error) {
	state := s.newRunState(ctx, gen)

	planned := make([]string, len(state.order))
	depMap := make(map[string][]string, len(state.order))
	for i, id := range state.order {
		planned[i] = id.String()
		depMap[id.String()] = domain.Strings(state.deps[id])
	}
	state.report.Order = planned
	s.tracer.EmitPlan(ctx, planned, depMap)

	state.runLoop()

	state.finish()
	state.report.Duration = time.Since(state.start)
	return state.report, ctx.Err()
}

type phase uint8

const (
	phaseWaiting phase = iota
	phaseQueued
	phaseRunning
	phaseDone
)

type result struct {
	target   domain.InternedString
	token    int
	artifact *domain.Artifact
	cached   bool
	err      error
	duration time.Duration
}

type runState struct {
	s      *Scheduler
	ctx    context.Context
	gen    *Generation
	start  time.Time
	report *domain.Report

	order      []domain.InternedString
	position   map[domain.InternedString]int
	deps       map[domain.InternedString][]domain.InternedString
	dependents map[domain.InternedString][]domain.InternedString
	inDegree   map[domain.InternedString]int
	phase      map[domain.InternedString]phase

	ready     []domain.InternedString
	running   map[domain.InternedString]int
	stale     map[domain.InternedString]bool
	requeue   map[domain.InternedString]bool
	nextToken int
	active    int
	limit     int
	resultsCh chan result
	changes   <-chan []string
}

func (s *Scheduler) newRunState(ctx context.Context, gen *Generation) *runState {
	ordered := s.Schedule(gen.Graph, gen.Targets)

	state := &runState{
		s:          s,
		ctx:        ctx,
		gen:        gen,
		start:      time.Now(),
		report:     &domain.Report{Generation: gen.Number},
		order:      make([]domain.InternedString, len(ordered)),
		position:   make(map[domain.InternedString]int, len(ordered)),
		deps:       make(map[domain.InternedString][]domain.InternedString, len(ordered)),
		dependents: make(map[domain.InternedString][]domain.InternedString, len(ordered)),
		inDegree:   make(map[domain.InternedString]int, len(ordered)),
		phase:      make(map[domain.InternedString]phase, len(ordered)),
		running:    make(map[domain.InternedString]int),
		stale:      make(map[domain.InternedString]bool),
		requeue:    make(map[domain.InternedString]bool),
		limit:      max(gen.Config.Concurrency(), 1),
		changes:    gen.Changes,
	}
	state.resultsCh = make(chan result, state.limit)

	for i, t := range ordered {
		state.order[i] = t.ID
		state.position[t.ID] = i
	}
	for _, id := range state.order {
		for _, dep := range gen.Graph.TargetDependencies(id) {
			if _, ok := state.position[dep]; ok {
				state.deps[id] = append(state.deps[id], dep)
				state.dependents[dep] = append(state.dependents[dep], id)
				state.inDegree[id]++
			}
		}
		if state.inDegree[id] == 0 {
			state.ready = append(state.ready, id)
			state.phase[id] = phaseQueued
		}
	}
	return state
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) runLoop() {
	for {
		state.dispatch()
		if state.isDone() {
			return
		}

		if state.ctx.Err() != nil {
			// Stop dispatching and drain the workers still running.
			if state.active == 0 {
				return
			}
			state.handleResult(<-state.resultsCh)
			continue
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case batch, ok := <-state.changes:
			if !ok {
				state.changes = nil
				continue
			}
			state.handleChanges(batch)
		case <-state.ctx.Done():
		}
	}
}

func (state *runState) dispatch() {
	for len(state.ready) > 0 && state.active < state.limit && state.ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]
		state.launch(id)
	}
}

// launch prepares one target on the coordinating goroutine and hands it to a worker.
func (state *runState) launch(id domain.InternedString) {
	g := state.gen.Graph
	t, ok := g.Target(id)
	if !ok {
		// Removed by a change batch.
		state.phase[id] = phaseDone
		return
	}

	for _, dep := range g.TargetDependencies(id) {
		dt, ok := g.Target(dep)
		if !ok {
			continue
		}
		switch {
		case dt.Status == domain.StatusReady:
		case state.requeue[dep] || state.stale[dep]:
			// A dependency was invalidated by a change batch.
			state.phase[id] = phaseDone
			state.requeue[id] = true
			return
		default:
			state.skip(id)
			return
		}
	}

	if t.Status != domain.StatusPending {
		if err := t.Transition(domain.StatusPending); err != nil {
			state.fail(t, err, 0)
			return
		}
	}

	fingerprint, err := g.TargetFingerprint(id, state.gen.Config.Digest())
	if err != nil {
		state.fail(t, err, 0)
		return
	}
	t.Fingerprint = fingerprint
	if err := t.Transition(domain.StatusBuilding); err != nil {
		state.fail(t, err, 0)
		return
	}

	entries := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = domain.ModulePath(g.Root(), e)
	}
	req := domain.BuildRequest{
		Target:  id.String(),
		Output:  id.String(),
		Entries: entries,
		Config:  state.gen.Config,
	}

	state.nextToken++
	state.running[id] = state.nextToken
	state.phase[id] = phaseRunning
	state.active++

	go state.work(req, fingerprint, state.nextToken)
}

// work runs on a worker goroutine. It never touches the graph.
func (state *runState) work(req domain.BuildRequest, fingerprint string, token int) {
	// End the span before reporting so renderers see it before the run returns.
	res := func() result {
		started := time.Now()
		id := domain.NewInternedString(req.Target)

		ctx, span := state.s.tracer.Start(state.ctx, req.Target)
		defer span.End()

		if artifact := state.lookup(req.Target, fingerprint); artifact != nil {
			span.SetAttribute(ports.AttrCached, true)
			return result{target: id, token: token, artifact: artifact, cached: true, duration: time.Since(started)}
		}

		artifact, err := state.s.builder.Build(ports.ContextWithOutput(ctx, span), req)
		if err != nil {
			span.RecordError(err)
			return result{target: id, token: token, err: err, duration: time.Since(started)}
		}
		return result{target: id, token: token, artifact: artifact, duration: time.Since(started)}
	}()

	state.resultsCh <- res
}

// lookup consults the output cache. Unreadable entries count as misses.
func (state *runState) lookup(target, fingerprint string) *domain.Artifact {
	artifact, err := state.s.cache.Get(state.gen.Graph.Root(), target, fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrCacheCorruption) {
			state.s.logger.Warn("ignoring corrupt cache entry for " + target)
		} else {
			state.s.logger.Warn("ignoring unreadable cache entry for " + target + ": " + err.Error())
		}
		return nil
	}
	return artifact
}

func (state *runState) handleResult(res result) {
	state.active--

	if state.running[res.target] != res.token || state.stale[res.target] {
		delete(state.running, res.target)
		delete(state.stale, res.target)
		state.phase[res.target] = phaseDone
		state.requeue[res.target] = true
		state.report.Record(res.target.String(), domain.OutcomeStale)
		state.s.metrics.ObserveTarget(res.target.String(), domain.OutcomeStale, res.duration)
		return
	}
	delete(state.running, res.target)
	state.phase[res.target] = phaseDone

	t, ok := state.gen.Graph.Target(res.target)
	if !ok {
		return
	}

	if res.err != nil {
		state.fail(t, res.err, res.duration)
		return
	}
	state.succeed(t, res)
}

func (state *runState) succeed(t *domain.BuildTarget, res result) {
	g := state.gen.Graph
	if err := t.Transition(domain.StatusReady); err != nil {
		state.fail(t, err, res.duration)
		return
	}
	t.OutputFingerprint = res.artifact.Fingerprint
	for _, e := range t.Entries {
		g.SetOutputFingerprint(e, res.artifact.Fingerprint)
	}

	outcome := domain.OutcomeBuilt
	if res.cached {
		outcome = domain.OutcomeCached
	} else {
		err := state.s.cache.Put(g.Root(), domain.CacheEntry{
			TargetID:    t.ID.String(),
			Fingerprint: t.Fingerprint,
			Artifact:    *res.artifact,
			Timestamp:   time.Now(),
		})
		if err != nil {
			state.s.logger.Warn("failed to cache " + t.ID.String() + ": " + err.Error())
		}
	}

	state.report.Record(t.ID.String(), outcome)
	state.report.Artifacts = append(state.report.Artifacts, res.artifact)
	state.s.metrics.ObserveTarget(t.ID.String(), outcome, res.duration)

	for _, id := range state.dependents[t.ID] {
		state.inDegree[id]--
		if state.inDegree[id] == 0 && state.phase[id] == phaseWaiting {
			state.enqueue(id)
		}
	}
}

func (state *runState) fail(t *domain.BuildTarget, err error, d time.Duration) {
	if t.Status != domain.StatusBuilding {
		_ = t.Transition(domain.StatusPending)
		_ = t.Transition(domain.StatusBuilding)
	}
	_ = t.Fail(err)
	state.phase[t.ID] = phaseDone
	state.report.RecordFailure(t.ID.String(), err)
	state.s.metrics.ObserveTarget(t.ID.String(), domain.OutcomeFailed, d)

	for _, id := range state.dependents[t.ID] {
		state.skip(id)
	}
}

// skip marks a target and its dependents in this generation as skipped.
// They stay pending.
func (state *runState) skip(id domain.InternedString) {
	if state.phase[id] == phaseDone || state.phase[id] == phaseRunning {
		return
	}
	state.phase[id] = phaseDone
	state.ready = slices.DeleteFunc(state.ready, func(x domain.InternedString) bool { return x == id })
	state.report.Record(id.String(), domain.OutcomeSkipped)
	state.s.metrics.ObserveTarget(id.String(), domain.OutcomeSkipped, 0)

	for _, dependent := range state.dependents[id] {
		state.skip(dependent)
	}
}

func (state *runState) enqueue(id domain.InternedString) {
	state.phase[id] = phaseQueued
	state.ready = append(state.ready, id)
	slices.SortFunc(state.ready, func(a, b domain.InternedString) int {
		return state.position[a] - state.position[b]
	})
}

// handleChanges applies a change batch. Running targets it invalidates become
// stale; finished ones are requeued for the next generation. Targets that have
// not started yet pick up the change when they are dispatched.
func (state *runState) handleChanges(batch []string) {
	if state.gen.Ingest == nil {
		return
	}
	for _, id := range state.gen.Ingest(batch) {
		if _, inGen := state.position[id]; !inGen {
			state.requeue[id] = true
			continue
		}
		switch state.phase[id] {
		case phaseRunning:
			state.stale[id] = true
		case phaseDone:
			state.requeue[id] = true
		}
	}
}

// finish requeues targets that never ran because a dependency went stale and
// records every target needing a follow-up generation.
func (state *runState) finish() {
	for _, id := range state.order {
		if state.phase[id] == phaseWaiting || state.phase[id] == phaseQueued {
			state.requeue[id] = true
		}
	}

	var pending []domain.InternedString
	for id := range state.requeue {
		if t, ok := state.gen.Graph.Target(id); ok && t.Status == domain.StatusPending {
			pending = append(pending, id)
		}
	}
	slices.SortFunc(pending, func(a, b domain.InternedString) int {
		ta, _ := state.gen.Graph.Target(a)
		tb, _ := state.gen.Graph.Target(b)
		if ta.Order != tb.Order {
			return ta.Order - tb.Order
		}
		return a.Compare(b)
	})
	state.report.Pending = domain.Strings(pending)
}
