// Package command wraps os/exec so platform code can be driven by fake
// command output in tests.
package command

import (
	"context"
	"os/exec"
	"time"
)

// Executor runs external commands.
type Executor interface {
	// Output runs a command and returns its standard output. A non-zero
	// exit is reported as an *exec.ExitError.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// CombinedOutput runs a command and returns stdout and stderr together.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealExecutor runs commands with exec.CommandContext. A zero Timeout
// leaves commands unbounded apart from ctx.
type RealExecutor struct {
	Timeout time.Duration
}

func (e *RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	//nolint:gosec // commands and arguments are fixed by the platform variants
	return exec.CommandContext(ctx, name, args...).Output()
}

func (e *RealExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	//nolint:gosec // commands and arguments are fixed by the platform variants
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (e *RealExecutor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}
