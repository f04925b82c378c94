// Package builder implements the incremental build orchestration: change
// detection, rebuild-set computation, cache resolution and scheduled
// compilation in dependency-respecting batches.
package builder

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/executor"
	"go.trai.ch/zerr"
)

// Options controls a single Build call.
type Options struct {
	// Force bypasses cache reads entirely. The cache is still populated
	// with the artifacts the build produces.
	Force bool

	// Workers overrides the wired pool size for this build when positive.
	Workers int
}

// Builder orchestrates the incremental compilation engine. The dependency
// graph is rebuilt per call and is read-only once scheduling starts; the
// artifact cache is the only collaborator mutated from worker goroutines.
type Builder struct {
	hasher    ports.ContentHasher
	cache     ports.ArtifactCache
	snapshots ports.SnapshotStore
	compiler  ports.Compiler
	pool      *executor.Pool
	tracer    ports.Tracer
	log       ports.Logger
	clock     clock.Clock
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces the wall clock, used by tests.
func WithClock(clk clock.Clock) Option {
	return func(b *Builder) {
		b.clock = clk
	}
}

// New creates a new Builder.
func New(
	hasher ports.ContentHasher,
	cache ports.ArtifactCache,
	snapshots ports.SnapshotStore,
	compiler ports.Compiler,
	pool *executor.Pool,
	tracer ports.Tracer,
	log ports.Logger,
	opts ...Option,
) *Builder {
	b := &Builder{
		hasher:    hasher,
		cache:     cache,
		snapshots: snapshots,
		compiler:  compiler,
		pool:      pool,
		tracer:    tracer,
		log:       log,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs one incremental build over the project.
//
// Only a dependency cycle or an unusable cache directory abort with an
// error; unreadable sources and per-module compile failures degrade into
// BuildResult fields.
func (b *Builder) Build(ctx context.Context, project *domain.Project, opts Options) (*domain.BuildResult, error) {
	start := b.clock.Now()
	ctx, span := b.tracer.Start(ctx, "build")
	defer span.End()

	state := newBuildState(b, project, opts)
	if opts.Workers > 0 {
		state.pool = executor.New(opts.Workers)
	}

	state.scan(ctx)

	if err := state.refreshGraph(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	state.detectChanges()
	state.computeCacheKeys()
	state.resolveCache()

	b.tracer.EmitPlan(ctx, idsToStrings(state.queued))

	if err := state.compile(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	state.persistSnapshot()

	result := state.result(b.clock.Since(start))
	span.SetAttribute("kiln.compiled", len(result.Compiled))
	span.SetAttribute("kiln.cache_hits", len(result.CacheHits))
	return result, nil
}

type buildState struct {
	b    *Builder
	opts Options
	pool *executor.Pool

	units        map[domain.InternedString]*domain.SourceUnit
	order        []domain.InternedString // unit ids in project order
	graph        *domain.Graph
	fingerprints map[domain.InternedString]domain.Fingerprint
	unreadable   map[domain.InternedString]bool
	keys         map[domain.InternedString]domain.CacheKey
	uncacheable  map[domain.InternedString]bool
	previous     map[domain.InternedString]domain.Fingerprint

	changed  []domain.InternedString
	rebuild  []domain.InternedString
	hits     []domain.InternedString
	queued   []domain.InternedString
	compiled []domain.InternedString
	failed   map[domain.InternedString]bool
	skipped  map[domain.InternedString]bool
}

func newBuildState(b *Builder, project *domain.Project, opts Options) *buildState {
	state := &buildState{
		b:            b,
		opts:         opts,
		pool:         b.pool,
		units:        make(map[domain.InternedString]*domain.SourceUnit, len(project.Units)),
		order:        make([]domain.InternedString, 0, len(project.Units)),
		fingerprints: make(map[domain.InternedString]domain.Fingerprint, len(project.Units)),
		unreadable:   make(map[domain.InternedString]bool),
		keys:         make(map[domain.InternedString]domain.CacheKey, len(project.Units)),
		uncacheable:  make(map[domain.InternedString]bool),
		failed:       make(map[domain.InternedString]bool),
		skipped:      make(map[domain.InternedString]bool),
	}
	for i := range project.Units {
		unit := project.Units[i]
		state.units[unit.ID] = &unit
		state.order = append(state.order, unit.ID)
	}
	return state
}

// scan fingerprints every unit, in parallel. An unreadable unit is marked
// as such and treated as always changed; it never fails the build here.
func (state *buildState) scan(ctx context.Context) {
	jobs := make([]executor.Job, len(state.order))
	for i, id := range state.order {
		jobs[i] = func(context.Context) error {
			fp, err := state.b.hasher.Fingerprint(state.units[id].Path)
			if err != nil {
				return err
			}
			state.units[id].Fingerprint = fp
			return nil
		}
	}

	results := state.pool.RunBatch(ctx, jobs)
	for i, err := range results {
		id := state.order[i]
		if err != nil {
			state.unreadable[id] = true
			state.b.log.Warn("unit unreadable, forcing rebuild: " + id.String())
			continue
		}
		state.fingerprints[id] = state.units[id].Fingerprint
	}
}

// refreshGraph rebuilds the dependency graph from the scanned units and
// rejects cyclic projects.
func (state *buildState) refreshGraph() error {
	state.graph = domain.NewGraph()
	for _, id := range state.order {
		state.graph.AddModule(id, state.units[id].Dependencies)
	}
	return state.graph.Validate()
}

// detectChanges diffs current fingerprints against the previous build's
// snapshot and derives the rebuild set.
func (state *buildState) detectChanges() {
	previous, err := state.b.snapshots.Load()
	if err != nil {
		// No snapshot means everything counts as changed; safe but slow.
		state.b.log.Warn("fingerprint snapshot unreadable, assuming full change set")
		previous = make(map[domain.InternedString]domain.Fingerprint)
	}
	state.previous = previous

	for _, id := range state.order {
		if state.unreadable[id] || previous[id] != state.fingerprints[id] {
			state.changed = append(state.changed, id)
		}
	}

	if state.opts.Force {
		state.rebuild = state.graph.AffectedBy(state.order)
		return
	}
	state.rebuild = state.graph.AffectedBy(state.changed)
}

// computeCacheKeys derives cache keys in topological order so each key
// covers the unit's transitive dependency content. Dependency keys are
// folded into one order-independent fingerprint by the hasher. Units
// downstream of an unreadable source get no sound key and are never cached.
func (state *buildState) computeCacheKeys() {
	order, err := state.graph.TopologicalOrder()
	if err != nil {
		// Validate already rejected cycles.
		return
	}

	for _, id := range order {
		unit, ok := state.units[id]
		if !ok {
			continue
		}

		unsound := state.unreadable[id]
		depKeys := make([]domain.Fingerprint, 0, len(unit.Dependencies))
		for _, dep := range unit.Dependencies {
			if state.uncacheable[dep] {
				unsound = true
			}
			depKeys = append(depKeys, domain.Fingerprint(state.keys[dep]))
		}

		state.uncacheable[id] = unsound
		if !unsound {
			combined := state.b.hasher.DependencyFingerprint(depKeys)
			state.keys[id] = domain.ComputeCacheKey(state.fingerprints[id], combined)
		}
	}
}

// resolveCache splits the rebuild set into cache hits and the compile
// queue. Force mode skips reads entirely.
func (state *buildState) resolveCache() {
	for _, id := range state.rebuild {
		if _, ok := state.units[id]; !ok {
			continue
		}
		if state.opts.Force || state.uncacheable[id] {
			state.queued = append(state.queued, id)
			continue
		}
		if _, ok := state.b.cache.Get(state.keys[id]); ok {
			state.hits = append(state.hits, id)
			continue
		}
		state.queued = append(state.queued, id)
	}
}

// compile runs the queued modules in parallel-safe batches. A failed
// module marks its transitive dependents skipped before later batches
// start, so nothing compiles against stale inputs.
func (state *buildState) compile(ctx context.Context) error {
	if len(state.queued) == 0 {
		return nil
	}

	queuedSet := make(map[domain.InternedString]bool, len(state.queued))
	for _, id := range state.queued {
		queuedSet[id] = true
	}

	batches, err := state.graph.BatchesFor(queuedSet)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return zerr.Wrap(err, "build cancelled")
		}

		runnable := make([]domain.InternedString, 0, len(batch))
		for _, id := range batch {
			if !state.skipped[id] {
				runnable = append(runnable, id)
			}
		}
		if len(runnable) == 0 {
			continue
		}

		jobs := make([]executor.Job, len(runnable))
		for i, id := range runnable {
			jobs[i] = state.compileJob(id)
		}

		results := state.pool.RunBatch(ctx, jobs)
		for i, jobErr := range results {
			id := runnable[i]
			if jobErr == nil {
				state.compiled = append(state.compiled, id)
				continue
			}
			if errors.Is(jobErr, domain.ErrCacheDirUnavailable) {
				return jobErr
			}
			state.markFailed(id, queuedSet, jobErr)
		}
	}
	return nil
}

// compileJob wraps one module compilation: invoke the external compiler,
// then write the artifact back to the cache.
func (state *buildState) compileJob(id domain.InternedString) executor.Job {
	return func(ctx context.Context) error {
		ctx, span := state.b.tracer.Start(ctx, id.String())
		defer span.End()

		artifact, err := state.b.compiler.Compile(ctx, state.units[id])
		if err != nil {
			span.RecordError(err)
			return zerr.With(zerr.Wrap(err, "module compilation failed"), "module", id.String())
		}

		if state.uncacheable[id] {
			return nil
		}

		entry := &domain.CacheEntry{
			Key:      state.keys[id],
			Artifact: *artifact,
		}
		if err := state.b.cache.Put(entry); err != nil {
			if errors.Is(err, domain.ErrEntryTooLarge) {
				state.b.log.Warn("artifact too large to cache: " + id.String())
				return nil
			}
			span.RecordError(err)
			return err
		}
		return nil
	}
}

// markFailed records a compile failure and skips every queued module that
// transitively depends on it.
func (state *buildState) markFailed(id domain.InternedString, queuedSet map[domain.InternedString]bool, err error) {
	state.failed[id] = true
	state.b.log.Error(err)

	for _, dependent := range state.graph.AffectedBy([]domain.InternedString{id}) {
		if dependent == id {
			continue
		}
		if queuedSet[dependent] && !state.failed[dependent] {
			state.skipped[dependent] = true
		}
	}
}

// persistSnapshot records this build's fingerprints for the next build's
// change detection. Failed, skipped and unreadable units are left out so
// they are retried next time.
func (state *buildState) persistSnapshot() {
	snapshot := make(map[domain.InternedString]domain.Fingerprint, len(state.fingerprints))
	for id, fp := range state.fingerprints {
		if state.failed[id] || state.skipped[id] || state.unreadable[id] {
			continue
		}
		snapshot[id] = fp
	}
	if err := state.b.snapshots.Save(snapshot); err != nil {
		state.b.log.Warn("failed to persist fingerprint snapshot: " + err.Error())
	}
}

func (state *buildState) result(duration time.Duration) *domain.BuildResult {
	result := &domain.BuildResult{
		Compiled:  sortedIDs(state.compiled),
		CacheHits: sortedIDs(state.hits),
		Failed:    setToSortedIDs(state.failed),
		Skipped:   setToSortedIDs(state.skipped),
		Duration:  duration,
	}
	return result
}

func sortedIDs(ids []domain.InternedString) []domain.InternedString {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, compareIDs)
	if sorted == nil {
		sorted = []domain.InternedString{}
	}
	return sorted
}

func setToSortedIDs(set map[domain.InternedString]bool) []domain.InternedString {
	ids := make([]domain.InternedString, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, compareIDs)
	return ids
}

func compareIDs(a, b domain.InternedString) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	default:
		return 0
	}
}

func idsToStrings(ids []domain.InternedString) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
