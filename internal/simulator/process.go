package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ProcessRunner runs an external command to completion and reports its
// exit status. A non-nil error means the process could not be run or was
// cut short; a non-zero exit code with a nil error is an ordinary failure.
type ProcessRunner interface {
	Invoke(ctx context.Context, c Command) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec. Each process gets its own
// process group so a timeout kills the simulator and anything it spawned.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	// Timeout bounds each invocation; zero means wait forever
	Timeout time.Duration
}

// Invoke blocks until the command exits
func (r *ExecRunner) Invoke(ctx context.Context, c Command) (int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stderr
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	configureProcess(cmd)
	cmd.Cancel = func() error {
		terminateProcess(cmd)
		return nil
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", c.Path, err)
	}

	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("%s did not finish: %w", c.Path, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("failed waiting for %s: %w", c.Path, err)
	}
	return 0, nil
}

// RunnerFunc adapts a plain function to ProcessRunner
type RunnerFunc func(ctx context.Context, c Command) (int, error)

// Invoke calls f(ctx, c)
func (f RunnerFunc) Invoke(ctx context.Context, c Command) (int, error) {
	return f(ctx, c)
}
