package analyzer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Command is one analyzer process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Output is what a finished process produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

func (o Output) combined() string {
	return string(o.Stdout) + string(o.Stderr)
}

// Runner starts analyzer processes. A process that ran and exited non-zero
// is reported through Output.ExitCode, not through the error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Output, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Output, error) { return f(ctx, cmd) }

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}
