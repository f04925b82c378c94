package commands_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/shell"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/adapters/watcher"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/builder"
	"go.trai.ch/kiln/internal/engine/executor"
)

type nullLogger struct{}

func (nullLogger) Info(string) {}
func (nullLogger) Warn(string) {}
func (nullLogger) Error(error) {}

// newCLI wires a real application over a temp project with one module,
// compiled by `cat` so the artifact is the source itself.
func newCLI(t *testing.T, compiler []string) *commands.CLI {
	t.Helper()

	root := t.TempDir()
	path := filepath.Join(root, "core.src")
	if err := os.WriteFile(path, []byte("core source\n"), 0o600); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}

	cfg := &domain.Config{
		Project: domain.Project{
			Root: root,
			Units: []domain.SourceUnit{
				{ID: domain.NewInternedString("core"), Path: path},
			},
		},
		Compiler: compiler,
		Cache:    domain.CacheConfig{Dir: filepath.Join(root, ".kiln", "cache")},
	}

	store, err := cas.NewStore(cfg.Cache, clock.NewMock())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := nullLogger{}
	b := builder.New(
		fs.NewHasher(),
		store,
		cas.NewSnapshotStore(cfg.Cache.Dir),
		shell.NewCompiler(cfg.Compiler, root, log),
		executor.New(2),
		telemetry.NewNoOpTracer(),
		log,
	)

	w, err := watcher.NewWatcher()
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	return commands.New(app.New(cfg, b, store, w, log))
}

func TestBuild_Success(t *testing.T) {
	cli := newCLI(t, []string{"cat"})
	cli.SetArgs([]string{"build"})

	if err := cli.Execute(context.Background()); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestBuild_FailurePropagates(t *testing.T) {
	cli := newCLI(t, []string{"false"})
	cli.SetArgs([]string{"build"})

	err := cli.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error for failing compiler, got nil")
	}
	if !errors.Is(err, domain.ErrBuildFailed) {
		t.Errorf("expected ErrBuildFailed, got %v", err)
	}
}

func TestBuild_ForceFlag(t *testing.T) {
	cli := newCLI(t, []string{"cat"})

	cli.SetArgs([]string{"build"})
	if err := cli.Execute(context.Background()); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	cli.SetArgs([]string{"build", "--force"})
	if err := cli.Execute(context.Background()); err != nil {
		t.Errorf("forced rebuild failed: %v", err)
	}
}

func TestClean(t *testing.T) {
	cli := newCLI(t, []string{"cat"})

	cli.SetArgs([]string{"build"})
	if err := cli.Execute(context.Background()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	cli.SetArgs([]string{"clean"})
	if err := cli.Execute(context.Background()); err != nil {
		t.Errorf("clean failed: %v", err)
	}
}

func TestVersion(t *testing.T) {
	cli := newCLI(t, []string{"cat"})
	cli.SetArgs([]string{"version"})

	if err := cli.Execute(context.Background()); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}
