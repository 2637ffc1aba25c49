// Package runner executes external programs and returns their standard output
// as lines. Any bytes written to standard error fail the invocation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Sentinel errors for the runner failure taxonomy.
var (
	// ErrCommandFailed matches every *CommandError.
	ErrCommandFailed = errors.New("command wrote to stderr")
	// ErrLaunchFailed matches every *LaunchError.
	ErrLaunchFailed = errors.New("command could not be started")
)

// Command describes one program invocation.
type Command struct {
	// Program is the executable name or path. Names are resolved through PATH.
	Program string
	// Args are passed verbatim, no shell expansion.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env entries (KEY=VALUE) are appended to the parent environment.
	Env []string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}

	return c.Program + " " + strings.Join(c.Args, " ")
}

// Runner runs a command to completion and returns its stdout lines.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]string, error)
}

// CommandError reports a command that produced error-stream output.
// The exit status is irrelevant: stderr output alone is a failure.
type CommandError struct {
	Command  Command
	Stderr   string
	ExitCode int
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, strings.TrimSpace(e.Stderr))
}

// Is reports whether target is ErrCommandFailed.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// LaunchError reports a program that could not be started.
type LaunchError struct {
	Command Command
	Cause   error
}

// Error implements error.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command.Program, e.Cause)
}

// Unwrap returns the underlying start error.
func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrLaunchFailed.
func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailed
}

// Exec is a Runner backed by os/exec.
type Exec struct {
	logger *slog.Logger
}

// NewExec creates an os/exec runner. A nil logger uses slog.Default.
func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}

	return &Exec{logger: logger}
}

// Run starts the command, waits for it to exit and splits stdout into lines.
// Output is only interpreted after the process has terminated.
func (r *Exec) Run(ctx context.Context, cmd Command) ([]string, error) {
	proc := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	proc.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		proc.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer

	proc.Stdout = &stdout
	proc.Stderr = &stderr

	startErr := proc.Start()
	if startErr != nil {
		return nil, &LaunchError{Command: cmd, Cause: startErr}
	}

	waitErr := proc.Wait()

	r.logger.DebugContext(ctx, "command finished",
		"cmd", cmd.String(), "dir", cmd.Dir,
		"stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, fmt.Errorf("run %s: %w", cmd.Program, ctxErr)
	}

	if stderr.Len() > 0 {
		return nil, &CommandError{Command: cmd, Stderr: stderr.String(), ExitCode: exitCode(waitErr)}
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, fmt.Errorf("wait %s: %w", cmd.Program, waitErr)
	}

	return SplitLines(stdout.String()), nil
}

func exitCode(waitErr error) int {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}

	return 0
}

// SplitLines splits output on "\n" and drops the empty tail after a final
// newline. Lines are otherwise kept byte for byte, including a trailing "\r",
// which can be part of a file name printed by find. Interior empty lines are
// kept; callers decide whether to discard them.
func SplitLines(out string) []string {
	if out == "" {
		return nil
	}

	lines := strings.Split(out, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
