// Package executor implements the fixed-size worker pool that runs
// compilation jobs in dependency-safe batches.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of work. Jobs must not mutate shared state outside of
// internally synchronized collaborators.
type Job func(ctx context.Context) error

// Pool is a fixed-size worker pool. It holds no domain state; callers hand
// it pure job closures.
type Pool struct {
	workers int
}

// DefaultWorkers returns the default pool size: one worker per core minus
// one reserved for the orchestrating goroutine, never less than one.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// New creates a pool with the given worker count. Zero or negative counts
// fall back to DefaultWorkers.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// RunBatch runs all jobs concurrently, bounded by the pool size, and blocks
// until every job has run to completion. Results are returned in submission
// order. A failing or panicking job never aborts its siblings; the panic is
// captured into that job's result slot.
func (p *Pool) RunBatch(ctx context.Context, jobs []Job) []error {
	results := make([]error, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for i, job := range jobs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = errors.Join(domain.ErrJobPanicked,
						zerr.With(zerr.New("job panicked"), "panic", fmt.Sprint(r)))
				}
			}()
			results[i] = job(ctx)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// RunBatches runs batches strictly in order: one batch fully drains before
// the next starts. Jobs within a batch run concurrently. If the context is
// cancelled between batches, the remaining batches are not started and
// their slots report the context error.
//
// Callers that need to inspect results between waves, such as dropping
// later jobs after an upstream failure, drive RunBatch per batch instead.
func (p *Pool) RunBatches(ctx context.Context, batches [][]Job) [][]error {
	results := make([][]error, len(batches))
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			skipped := make([]error, len(batch))
			for j := range skipped {
				skipped[j] = err
			}
			results[i] = skipped
			continue
		}
		results[i] = p.RunBatch(ctx, batch)
	}
	return results
}
