package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundler/internal/core/domain"
	"go.trai.ch/bundler/internal/core/ports"
	"go.trai.ch/bundler/internal/core/ports/mocks"
	"go.trai.ch/bundler/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const root = "/project"

type schedulerTestMocks struct {
	builder *mocks.MockTargetBuilder
	cache   *mocks.MockArtifactCache
	tracer  *mocks.MockTracer
	metrics *mocks.MockMetrics
	logger  *mocks.MockLogger
}

// setupSchedulerTest creates a scheduler with quiet telemetry mocks.
func setupSchedulerTest(t *testing.T) (*scheduler.Scheduler, schedulerTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := schedulerTestMocks{
		builder: mocks.NewMockTargetBuilder(ctrl),
		cache:   mocks.NewMockArtifactCache(ctrl),
		tracer:  mocks.NewMockTracer(ctrl),
		metrics: mocks.NewMockMetrics(ctrl),
		logger:  mocks.NewMockLogger(ctrl),
	}

	mockSpan := mocks.NewMockSpan(ctrl)
	mockSpan.EXPECT().End().AnyTimes()
	mockSpan.EXPECT().RecordError(gomock.Any()).AnyTimes()
	mockSpan.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()

	m.tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, mockSpan
		},
	).AnyTimes()
	m.tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.metrics.EXPECT().ObserveTarget(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	s := scheduler.NewScheduler(m.builder, m.cache, m.tracer, m.metrics, m.logger)
	return s, m
}

// targetSpec declares a target with one entry module and the entry modules it imports.
type targetSpec struct {
	id      string
	entry   string
	imports []string
}

// createGraphHelper tracks every entry module, records the import edges and
// registers the targets in declaration order.
func createGraphHelper(t *testing.T, specs ...targetSpec) *domain.Graph {
	t.Helper()
	g := domain.NewGraph(root)
	for _, s := range specs {
		require.NoError(t, g.AddModule(domain.NewModule(s.entry, "fp-"+s.entry)))
	}
	for _, s := range specs {
		require.NoError(t, g.SetDependencies(domain.NewInternedString(s.entry), domain.NewInternedStrings(s.imports)))
	}
	for i, s := range specs {
		require.NoError(t, g.AddTarget(domain.NewBuildTarget(s.id, []string{s.entry}, i)))
	}
	require.NoError(t, g.ValidateTargets())
	return g
}

// chainGraph builds A -> B -> C: A depends on B and B depends on C.
func chainGraph(t *testing.T) *domain.Graph {
	t.Helper()
	return createGraphHelper(t,
		targetSpec{id: "A.js", entry: "a.ts", imports: []string{"b.ts"}},
		targetSpec{id: "B.js", entry: "b.ts", imports: []string{"c.ts"}},
		targetSpec{id: "C.js", entry: "c.ts"},
	)
}

func newConfig(t *testing.T, concurrency int) *domain.Config {
	t.Helper()
	cfg, err := domain.NewConfig(&domain.Project{Root: root, EntryPoints: []string{"a.ts"}}, domain.Flags{Concurrency: concurrency})
	require.NoError(t, err)
	return cfg
}

func ids(targets []*domain.BuildTarget) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.ID.String()
	}
	return out
}

func artifactFor(req domain.BuildRequest) *domain.Artifact {
	return domain.NewArtifact(req.Target, req.Output, []byte("// "+req.Target))
}

func target(t *testing.T, g *domain.Graph, id string) *domain.BuildTarget {
	t.Helper()
	bt, ok := g.Target(domain.NewInternedString(id))
	require.True(t, ok)
	return bt
}

func TestScheduler_Schedule_ChangeLeaf(t *testing.T) {
	s, _ := setupSchedulerTest(t)
	g := chainGraph(t)

	affected := g.Affected([]domain.InternedString{domain.NewInternedString("c.ts")})
	assert.Equal(t, []string{"C.js", "B.js", "A.js"}, ids(s.Schedule(g, affected)))
}

func TestScheduler_Schedule_ChangeRoot(t *testing.T) {
	s, _ := setupSchedulerTest(t)
	g := chainGraph(t)

	affected := g.Affected([]domain.InternedString{domain.NewInternedString("a.ts")})
	assert.Equal(t, []string{"A.js"}, ids(s.Schedule(g, affected)))
}

func TestScheduler_Schedule_TiesByDeclaration(t *testing.T) {
	s, _ := setupSchedulerTest(t)
	// Diamond: app imports left and right, both import core.
	g := createGraphHelper(t,
		targetSpec{id: "app.js", entry: "app.ts", imports: []string{"left.ts", "right.ts"}},
		targetSpec{id: "right.js", entry: "right.ts", imports: []string{"core.ts"}},
		targetSpec{id: "left.js", entry: "left.ts", imports: []string{"core.ts"}},
		targetSpec{id: "core.js", entry: "core.ts"},
		targetSpec{id: "solo.js", entry: "solo.ts"},
	)

	order := ids(s.Schedule(g, g.Targets()))
	assert.Equal(t, []string{"core.js", "right.js", "left.js", "app.js", "solo.js"}, order)
}

func TestScheduler_Schedule_DependenciesFirst(t *testing.T) {
	s, _ := setupSchedulerTest(t)
	g := createGraphHelper(t,
		targetSpec{id: "a.js", entry: "a.ts", imports: []string{"d.ts", "b.ts"}},
		targetSpec{id: "b.js", entry: "b.ts", imports: []string{"e.ts"}},
		targetSpec{id: "c.js", entry: "c.ts", imports: []string{"e.ts"}},
		targetSpec{id: "d.js", entry: "d.ts", imports: []string{"c.ts"}},
		targetSpec{id: "e.js", entry: "e.ts"},
	)

	order := s.Schedule(g, g.Targets())
	require.Len(t, order, 5)

	position := make(map[string]int, len(order))
	for i, bt := range order {
		position[bt.ID.String()] = i
	}
	for _, bt := range order {
		for _, dep := range g.TargetDependencies(bt.ID) {
			assert.Less(t, position[dep.String()], position[bt.ID.String()], "%s must come after %s", bt.ID, dep)
		}
	}
}

func TestScheduler_Run_BuildsInDependencyOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := chainGraph(t)

		var mu sync.Mutex
		var built []string
		m.cache.EXPECT().Get(root, gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)
		m.cache.EXPECT().Put(root, gomock.Any()).Return(nil).Times(3)
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				mu.Lock()
				built = append(built, req.Target)
				mu.Unlock()
				assert.Equal(t, []string{"/project/" + map[string]string{"A.js": "a.ts", "B.js": "b.ts", "C.js": "c.ts"}[req.Target]}, req.Entries)
				return artifactFor(req), nil
			},
		).Times(3)

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Number:  1,
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 4),
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"C.js", "B.js", "A.js"}, built)
		assert.Equal(t, []string{"C.js", "B.js", "A.js"}, report.Order)
		assert.Equal(t, []string{"C.js", "B.js", "A.js"}, report.Built)
		assert.Len(t, report.Artifacts, 3)
		assert.Empty(t, report.Pending)
		assert.False(t, report.HasFailures())

		for _, id := range []string{"A.js", "B.js", "C.js"} {
			bt := target(t, g, id)
			assert.Equal(t, domain.StatusReady, bt.Status)
			assert.Equal(t, domain.ContentFingerprint([]byte("// "+id)), bt.OutputFingerprint)
			assert.NotEmpty(t, bt.Fingerprint)
		}
		mod, _ := g.Module(domain.NewInternedString("c.ts"))
		assert.Equal(t, target(t, g, "C.js").OutputFingerprint, mod.OutputFingerprint)
	})
}

func TestScheduler_Run_FullCacheHit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := chainGraph(t)

		m.cache.EXPECT().Get(root, gomock.Any(), gomock.Any()).DoAndReturn(
			func(_, targetID, _ string) (*domain.Artifact, error) {
				return domain.NewArtifact(targetID, targetID, []byte("cached "+targetID)), nil
			},
		).Times(3)
		// No Build and no Put expectations: a hit never runs a transform.

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"C.js", "B.js", "A.js"}, report.Cached)
		assert.Empty(t, report.Built)
		assert.Len(t, report.Artifacts, 3)
	})
}

func TestScheduler_Run_PartialCacheHit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := chainGraph(t)

		m.cache.EXPECT().Get(root, "A.js", gomock.Any()).Return(nil, nil)
		m.cache.EXPECT().Put(root, gomock.Any()).DoAndReturn(func(_ string, entry domain.CacheEntry) error {
			assert.Equal(t, "A.js", entry.TargetID)
			assert.Equal(t, target(t, g, "A.js").Fingerprint, entry.Fingerprint)
			assert.False(t, entry.Timestamp.IsZero())
			return nil
		})
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				assert.Equal(t, "A.js", req.Target)
				return artifactFor(req), nil
			},
		)

		// Only A changed: B and C are ready from an earlier generation.
		for _, id := range []string{"B.js", "C.js"} {
			bt := target(t, g, id)
			require.NoError(t, bt.Transition(domain.StatusBuilding))
			require.NoError(t, bt.Transition(domain.StatusReady))
		}
		affected := g.Affected([]domain.InternedString{domain.NewInternedString("a.ts")})

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: affected,
			Config:  newConfig(t, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A.js"}, report.Order)
		assert.Equal(t, []string{"A.js"}, report.Built)
	})
}

func TestScheduler_Run_FailureIsolation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		// app depends on broken; other is independent.
		g := createGraphHelper(t,
			targetSpec{id: "app.js", entry: "app.ts", imports: []string{"broken.ts"}},
			targetSpec{id: "broken.js", entry: "broken.ts"},
			targetSpec{id: "other.js", entry: "other.ts"},
		)

		buildErr := errors.New("src/broken.ts:1:6: Expected identifier")
		m.cache.EXPECT().Get(root, gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
		m.cache.EXPECT().Put(root, gomock.Any()).Return(nil)
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				switch req.Target {
				case "broken.js":
					return nil, buildErr
				case "other.js":
					return artifactFor(req), nil
				default:
					t.Errorf("%s must not build", req.Target)
					return nil, nil
				}
			},
		).Times(2)

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 4),
		})
		require.NoError(t, err)

		require.Len(t, report.Failed, 1)
		assert.Equal(t, "broken.js", report.Failed[0].Target)
		assert.ErrorIs(t, report.Failed[0].Err, buildErr)
		assert.Equal(t, []string{"other.js"}, report.Built)
		assert.Equal(t, []string{"app.js"}, report.Skipped)
		assert.Empty(t, report.Pending)

		assert.Equal(t, domain.StatusFailed, target(t, g, "broken.js").Status)
		assert.Equal(t, domain.StatusReady, target(t, g, "other.js").Status)
		assert.Equal(t, domain.StatusPending, target(t, g, "app.js").Status)

		require.Error(t, report.Err())
		assert.ErrorIs(t, report.Err(), domain.ErrBuildFailed)
		assert.ErrorContains(t, report.Err(), "Expected identifier")
	})
}

func TestScheduler_Run_SkipsDependentsOfEarlierFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := setupSchedulerTest(t)
		g := chainGraph(t)

		// C failed in an earlier generation; only A is rebuilt now.
		c := target(t, g, "C.js")
		require.NoError(t, c.Transition(domain.StatusBuilding))
		require.NoError(t, c.Fail(errors.New("broken")))
		b := target(t, g, "B.js")
		require.NoError(t, b.Transition(domain.StatusBuilding))
		require.NoError(t, b.Transition(domain.StatusReady))

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: []*domain.BuildTarget{target(t, g, "A.js")},
			Config:  newConfig(t, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A.js"}, report.Skipped)
		assert.Empty(t, report.Pending)
	})
}

func TestScheduler_Run_CorruptCacheIsMiss(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := createGraphHelper(t, targetSpec{id: "main.js", entry: "main.ts"})

		corrupt := zerr.With(zerr.Wrap(domain.ErrCacheCorruption, "invalid json"), "target", "main.js")
		m.cache.EXPECT().Get(root, "main.js", gomock.Any()).Return(nil, corrupt)
		m.logger.EXPECT().Warn("ignoring corrupt cache entry for main.js")
		m.cache.EXPECT().Put(root, gomock.Any()).Return(nil)
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				return artifactFor(req), nil
			},
		)

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"main.js"}, report.Built)
	})
}

func TestScheduler_Run_CachePutFailureIsNotFatal(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := createGraphHelper(t, targetSpec{id: "main.js", entry: "main.ts"})

		m.cache.EXPECT().Get(root, "main.js", gomock.Any()).Return(nil, nil)
		m.cache.EXPECT().Put(root, gomock.Any()).Return(domain.ErrCacheWriteFailed)
		m.logger.EXPECT().Warn("failed to cache main.js: failed to write cache entry")
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				return artifactFor(req), nil
			},
		)

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"main.js"}, report.Built)
		assert.Equal(t, domain.StatusReady, target(t, g, "main.js").Status)
	})
}

func TestScheduler_Run_StaleResultDiscarded(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := chainGraph(t)

		// C and B are current; A is rebuilt and changes while it builds.
		for _, id := range []string{"B.js", "C.js"} {
			bt := target(t, g, id)
			require.NoError(t, bt.Transition(domain.StatusBuilding))
			require.NoError(t, bt.Transition(domain.StatusReady))
		}

		started := make(chan struct{})
		proceed := make(chan struct{})
		m.cache.EXPECT().Get(root, "A.js", gomock.Any()).Return(nil, nil)
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				close(started)
				<-proceed
				return artifactFor(req), nil
			},
		)
		// No Put: the stale artifact must not reach the cache.

		changes := make(chan []string)
		var ingested []string
		gen := &scheduler.Generation{
			Number:  2,
			Graph:   g,
			Targets: []*domain.BuildTarget{target(t, g, "A.js")},
			Config:  newConfig(t, 1),
			Changes: changes,
			Ingest: func(paths []string) []domain.InternedString {
				ingested = append(ingested, paths...)
				a := target(t, g, "A.js")
				require.NoError(t, a.Transition(domain.StatusPending))
				return []domain.InternedString{a.ID}
			},
		}

		var report *domain.Report
		var runErr error
		done := make(chan struct{})
		go func() {
			report, runErr = s.Run(context.Background(), gen)
			close(done)
		}()

		<-started
		changes <- []string{"/project/a.ts"}
		synctest.Wait()
		close(proceed)
		<-done

		require.NoError(t, runErr)
		assert.Equal(t, []string{"/project/a.ts"}, ingested)
		assert.Equal(t, []string{"A.js"}, report.Stale)
		assert.Equal(t, []string{"A.js"}, report.Pending)
		assert.Empty(t, report.Built)
		assert.Empty(t, report.Artifacts)
		assert.Equal(t, domain.StatusPending, target(t, g, "A.js").Status)
	})
}

func TestScheduler_Run_ChangeToFinishedTargetIsRequeued(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := createGraphHelper(t,
			targetSpec{id: "first.js", entry: "first.ts"},
			targetSpec{id: "second.js", entry: "second.ts"},
		)

		m.cache.EXPECT().Get(root, gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
		m.cache.EXPECT().Put(root, gomock.Any()).Return(nil).Times(2)

		changes := make(chan []string)
		secondStarted := make(chan struct{})
		proceed := make(chan struct{})
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				if req.Target == "second.js" {
					close(secondStarted)
					<-proceed
				}
				return artifactFor(req), nil
			},
		).Times(2)

		gen := &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 1),
			Changes: changes,
			Ingest: func([]string) []domain.InternedString {
				first := target(t, g, "first.js")
				require.NoError(t, first.Transition(domain.StatusPending))
				return []domain.InternedString{first.ID}
			},
		}

		var report *domain.Report
		done := make(chan struct{})
		go func() {
			report, _ = s.Run(context.Background(), gen)
			close(done)
		}()

		<-secondStarted
		changes <- []string{"/project/first.ts"}
		synctest.Wait()
		close(proceed)
		<-done

		assert.Equal(t, []string{"first.js", "second.js"}, report.Built)
		assert.Equal(t, []string{"first.js"}, report.Pending)
		assert.Empty(t, report.Stale)
	})
}

func TestScheduler_Run_ConcurrencyLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		g := createGraphHelper(t,
			targetSpec{id: "1.js", entry: "1.ts"},
			targetSpec{id: "2.js", entry: "2.ts"},
			targetSpec{id: "3.js", entry: "3.ts"},
			targetSpec{id: "4.js", entry: "4.ts"},
			targetSpec{id: "5.js", entry: "5.ts"},
		)

		var current, peak atomic.Int32
		m.cache.EXPECT().Get(root, gomock.Any(), gomock.Any()).Return(nil, nil).Times(5)
		m.cache.EXPECT().Put(root, gomock.Any()).Return(nil).Times(5)
		m.builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req domain.BuildRequest) (*domain.Artifact, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
				return artifactFor(req), nil
			},
		).Times(5)

		report, err := s.Run(context.Background(), &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 2),
		})
		require.NoError(t, err)
		assert.Len(t, report.Built, 5)
		assert.Equal(t, int32(2), peak.Load())
	})
}

func TestScheduler_Run_Canceled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, _ := setupSchedulerTest(t)
		g := chainGraph(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := s.Run(ctx, &scheduler.Generation{
			Graph:   g,
			Targets: g.Targets(),
			Config:  newConfig(t, 2),
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, report.Built)
		assert.Equal(t, []string{"A.js", "B.js", "C.js"}, report.Pending)
	})
}
