// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.trai.ch/kiln/internal/adapters/watcher"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/builder"
	"go.trai.ch/zerr"
)

// Durations in summaries are rounded for readability.
const humanizeDurationUnit = time.Millisecond

// App represents the main application logic.
type App struct {
	cfg     *domain.Config
	builder *builder.Builder
	cache   ports.ArtifactCache
	watcher ports.Watcher
	logger  ports.Logger
}

// New creates a new App instance.
func New(cfg *domain.Config, b *builder.Builder, cache ports.ArtifactCache, w ports.Watcher, logger ports.Logger) *App {
	return &App{
		cfg:     cfg,
		builder: b,
		cache:   cache,
		watcher: w,
		logger:  logger,
	}
}

// RunOptions control a single build invocation.
type RunOptions struct {
	// Force recompiles every module, bypassing cache reads.
	Force bool
	// Workers overrides the configured worker count when positive.
	Workers int
}

// Build runs one incremental build and logs a summary. It returns
// domain.ErrBuildFailed when any module failed or was skipped.
func (a *App) Build(ctx context.Context, opts RunOptions) error {
	result, err := a.builder.Build(ctx, &a.cfg.Project, builder.Options{Force: opts.Force, Workers: opts.Workers})
	if err != nil {
		return zerr.Wrap(err, "build execution failed")
	}

	a.logSummary(result)

	if !result.OK() {
		return errors.Join(domain.ErrBuildFailed,
			zerr.With(zerr.With(zerr.New("build finished with failures"),
				"failed", len(result.Failed)),
				"skipped", len(result.Skipped)))
	}
	return nil
}

// Watch runs an initial build, then rebuilds whenever sources under the
// project root change. It blocks until the context is cancelled.
func (a *App) Watch(ctx context.Context) error {
	// The first build may legitimately fail; watch mode stays up so the
	// next save can fix it.
	if err := a.Build(ctx, RunOptions{}); err != nil {
		a.logger.Error(err)
	}

	rebuilds := make(chan struct{}, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		a.logger.Info(fmt.Sprintf("detected %d changed path(s), rebuilding", len(paths)))
		select {
		case rebuilds <- struct{}{}:
		default:
		}
	})

	if err := a.watcher.Start(ctx, a.cfg.Project.Root); err != nil {
		return zerr.Wrap(err, "failed to start file watcher")
	}
	defer func() {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop file watcher: " + err.Error())
		}
	}()

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rebuilds:
			if err := a.Build(ctx, RunOptions{}); err != nil {
				a.logger.Error(err)
			}
		}
	}
}

// Clean removes every cached artifact and the fingerprint snapshot, so the
// next build starts cold.
func (a *App) Clean() error {
	if err := a.cache.Clear(); err != nil {
		return zerr.Wrap(err, "failed to clear artifact cache")
	}
	a.logger.Info("artifact cache cleared")
	return nil
}

// Close releases the artifact cache, persisting its index.
func (a *App) Close() error {
	return a.cache.Close()
}

func (a *App) logSummary(result *domain.BuildResult) {
	stats := a.cache.Stats()
	a.logger.Info(fmt.Sprintf(
		"build finished in %s: %d compiled, %d from cache (%.0f%% hit ratio), %d failed, %d skipped",
		result.Duration.Round(humanizeDurationUnit),
		len(result.Compiled),
		len(result.CacheHits),
		result.HitRatio()*100,
		len(result.Failed),
		len(result.Skipped),
	))
	a.logger.Info(fmt.Sprintf(
		"cache: %d entries, %s on disk, %d evictions",
		stats.Entries,
		humanize.Bytes(uint64(stats.Bytes)), //nolint:gosec // sizes are non-negative
		stats.Evictions,
	))
}
