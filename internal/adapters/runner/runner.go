package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNonZeroExit is returned when a process ran but exited with a non-zero status
var ErrNonZeroExit = errors.New("process exited with non-zero status")

// Result is the captured outcome of one process invocation
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner spawns an external program with an argument vector.
// Implementations never go through a shell.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs processes with os/exec
type ExecRunner struct {
	// Timeout bounds each invocation; zero means no limit
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-call timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args and waits for it to exit.
// A non-zero exit returns the captured Result together with an error wrapping ErrNonZeroExit.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", CommandLine(name, args), ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, fmt.Errorf("%s: exit status %d: %w%s", CommandLine(name, args), res.ExitCode, ErrNonZeroExit, stderrSuffix(res.Stderr))
	default:
		// Binary missing or not executable
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", CommandLine(name, args), err)
	}
}

// CommandLine renders an argv for log messages
func CommandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func stderrSuffix(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return ""
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return ", output: " + msg
}

// Compile-time interface check
var _ Runner = (*ExecRunner)(nil)
