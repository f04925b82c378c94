// Package shell provides the external compiler adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Compiler = (*Compiler)(nil)

// stderrTailLines bounds how much compiler output is attached to errors.
const stderrTailLines = 20

// Compiler implements ports.Compiler by invoking a configured compiler
// command per unit. The command receives the unit's source path as its
// final argument; whatever it writes to stdout becomes the artifact bytes.
type Compiler struct {
	command []string
	dir     string
	logger  ports.Logger
}

// NewCompiler creates a compiler adapter running command from dir.
func NewCompiler(command []string, dir string, logger ports.Logger) *Compiler {
	return &Compiler{
		command: command,
		dir:     dir,
		logger:  logger,
	}
}

// Compile runs the compiler command for one source unit.
func (c *Compiler) Compile(ctx context.Context, unit *domain.SourceUnit) (*domain.Artifact, error) {
	if len(c.command) == 0 {
		return nil, errors.Join(domain.ErrNoCompilerConfigured,
			zerr.With(zerr.New("no compiler configured"), "module", unit.ID.String()))
	}

	name := c.command[0]
	args := append(append([]string{}, c.command[1:]...), unit.Path)

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // user provided command
	cmd.Dir = c.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1 // unknown or signal
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}

		detail := zerr.Wrap(err, "compiler command failed")
		detail = zerr.With(detail, "module", unit.ID.String())
		detail = zerr.With(detail, "exit_code", exitCode)
		if tail := tailLines(stderr.String(), stderrTailLines); tail != "" {
			detail = zerr.With(detail, "stderr", tail)
		}
		return nil, errors.Join(detail, domain.ErrCompileFailed)
	}

	return &domain.Artifact{
		Data: stdout.Bytes(),
	}, nil
}

// tailLines returns the last n lines of s, trimmed.
func tailLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
