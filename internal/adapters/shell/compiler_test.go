package shell_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/shell"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

type discardLogger struct{}

func (discardLogger) Info(string) {}
func (discardLogger) Warn(string) {}
func (discardLogger) Error(error) {}

func unit(t *testing.T, dir, name, content string) *domain.SourceUnit {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &domain.SourceUnit{
		ID:   domain.NewInternedString(name),
		Path: path,
	}
}

func TestCompiler_StdoutBecomesArtifact(t *testing.T) {
	dir := t.TempDir()
	u := unit(t, dir, "mod.src", "hello artifact")

	c := shell.NewCompiler([]string{"cat"}, dir, discardLogger{})
	artifact, err := c.Compile(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello artifact"), artifact.Data)
}

func TestCompiler_FailureCarriesExitCodeAndStderr(t *testing.T) {
	dir := t.TempDir()
	u := unit(t, dir, "mod.src", "")

	c := shell.NewCompiler([]string{"sh", "-c", "echo compile blew up >&2; exit 3"}, dir, discardLogger{})
	_, err := c.Compile(context.Background(), u)
	require.Error(t, err)

	var zErr *zerr.Error
	require.True(t, errors.As(err, &zErr))
	meta := zErr.Metadata()
	assert.Equal(t, "mod.src", meta["module"])
	assert.Equal(t, 3, meta["exit_code"])
	assert.Contains(t, meta["stderr"], "compile blew up")
}

func TestCompiler_NoCommandConfigured(t *testing.T) {
	dir := t.TempDir()
	u := unit(t, dir, "mod.src", "")

	c := shell.NewCompiler(nil, dir, discardLogger{})
	_, err := c.Compile(context.Background(), u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCompilerConfigured))
}

func TestCompiler_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	u := unit(t, dir, "mod.src", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := shell.NewCompiler([]string{"sleep", "10"}, dir, discardLogger{})
	_, err := c.Compile(ctx, u)
	require.Error(t, err)
}
