package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	deskerrors "github.com/rahul/deskpilot/internal/errors"
)

// Runner executes an external helper (xdotool, tesseract, ...) and returns
// its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs commands with os/exec. Env entries are appended to the
// inherited environment.
type ExecRunner struct {
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), commandError(name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// commandError classifies exec failures: a missing helper binary cannot be
// fixed by retrying, a failed invocation might be.
func commandError(name string, err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return deskerrors.Wrap(deskerrors.CodeActionFailed, err,
			fmt.Sprintf("%s is not installed", name), deskerrors.WithRecoverable(false))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return fmt.Errorf("%s failed: %w: %s", name, err, msg)
}
