package executor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/executor"
	"go.trai.ch/zerr"
)

func TestPool_RunBatch_ResultsInSubmissionOrder(t *testing.T) {
	p := executor.New(4)

	errA := zerr.New("a failed")
	jobs := []executor.Job{
		func(context.Context) error { return nil },
		func(context.Context) error { return errA },
		func(context.Context) error { return nil },
	}

	results := p.RunBatch(context.Background(), jobs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0] != nil || results[2] != nil {
		t.Errorf("expected nil results for succeeding jobs, got %v and %v", results[0], results[2])
	}
	if !errors.Is(results[1], errA) {
		t.Errorf("expected errA in slot 1, got %v", results[1])
	}
}

func TestPool_RunBatch_BoundsConcurrency(t *testing.T) {
	const workers = 2
	p := executor.New(workers)

	var current, peak atomic.Int32
	var mu sync.Mutex

	jobs := make([]executor.Job, 16)
	for i := range jobs {
		jobs[i] = func(context.Context) error {
			n := current.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			defer current.Add(-1)
			return nil
		}
	}

	p.RunBatch(context.Background(), jobs)

	if got := peak.Load(); got > workers {
		t.Errorf("observed %d concurrent jobs, pool bound is %d", got, workers)
	}
}

func TestPool_RunBatch_FailureDoesNotAbortSiblings(t *testing.T) {
	p := executor.New(2)

	var ran atomic.Int32
	jobs := []executor.Job{
		func(context.Context) error { return zerr.New("boom") },
		func(context.Context) error { ran.Add(1); return nil },
		func(context.Context) error { ran.Add(1); return nil },
	}

	results := p.RunBatch(context.Background(), jobs)
	if results[0] == nil {
		t.Error("expected error in slot 0")
	}
	if got := ran.Load(); got != 2 {
		t.Errorf("expected 2 sibling jobs to run, got %d", got)
	}
}

func TestPool_RunBatch_CapturesPanic(t *testing.T) {
	p := executor.New(2)

	jobs := []executor.Job{
		func(context.Context) error { panic("kaboom") },
		func(context.Context) error { return nil },
	}

	results := p.RunBatch(context.Background(), jobs)
	if !errors.Is(results[0], domain.ErrJobPanicked) {
		t.Errorf("expected ErrJobPanicked, got %v", results[0])
	}
	if results[1] != nil {
		t.Errorf("expected sibling job unaffected, got %v", results[1])
	}
}

func TestPool_RunBatches_Sequencing(t *testing.T) {
	p := executor.New(4)

	var order []int
	var mu sync.Mutex
	record := func(batch int) executor.Job {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, batch)
			mu.Unlock()
			return nil
		}
	}

	batches := [][]executor.Job{
		{record(0), record(0)},
		{record(1)},
		{record(2), record(2)},
	}

	p.RunBatches(context.Background(), batches)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("expected 5 jobs to run, got %d", len(order))
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("batch %d ran after batch %d; batches must drain in order", order[i], order[i-1])
		}
	}
}

func TestPool_RunBatches_CancelledContextSkipsRemaining(t *testing.T) {
	p := executor.New(1)

	ctx, cancel := context.WithCancel(context.Background())

	batches := [][]executor.Job{
		{func(context.Context) error { cancel(); return nil }},
		{func(context.Context) error { t.Error("job in cancelled batch ran"); return nil }},
	}

	results := p.RunBatches(ctx, batches)
	if results[0][0] != nil {
		t.Errorf("expected first batch to succeed, got %v", results[0][0])
	}
	if !errors.Is(results[1][0], context.Canceled) {
		t.Errorf("expected context.Canceled for skipped batch, got %v", results[1][0])
	}
}

func TestNew_NonPositiveWorkersFallsBack(t *testing.T) {
	if got := executor.New(0).Workers(); got < 1 {
		t.Errorf("expected at least one worker, got %d", got)
	}
	if got := executor.New(-3).Workers(); got < 1 {
		t.Errorf("expected at least one worker, got %d", got)
	}
	if got := executor.New(7).Workers(); got != 7 {
		t.Errorf("expected 7 workers, got %d", got)
	}
}
