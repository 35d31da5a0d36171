// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer wraps external static-analysis programs behind a common
// Tool interface. Each variant owns its own output parsing.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/bartekus/vcgen/internal/domain"
)

var (
	// ErrUnavailable means the analyzer executable could not be located.
	ErrUnavailable = errors.New("analyzer unavailable")
	// ErrExecutionFailed means the analyzer exited non-zero or its output
	// could not be parsed.
	ErrExecutionFailed = errors.New("analyzer execution failed")
)

// Tool is one external analyzer.
type Tool interface {
	// Name is the display name used for dataset column headers.
	Name() string
	// InstallLocation resolves the executable: environment override first,
	// then the well-known default path.
	InstallLocation() (string, bool)
	// Scan runs the analyzer over a single source file.
	Scan(ctx context.Context, path string) (domain.ToolResult, error)
}

// ExecutionError describes a failed analyzer run.
type ExecutionError struct {
	Tool     string
	ExitCode int
	Output   string // last lines of combined output
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExecutionFailed) match every ExecutionError.
func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

// Option customizes an analyzer at construction.
type Option func(*executable)

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *executable) { e.runner = r }
}

// WithLookupEnv replaces os.LookupEnv for override resolution.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *executable) { e.lookupEnv = fn }
}

// WithDefaultPath replaces the well-known install path.
func WithDefaultPath(path string) Option {
	return func(e *executable) { e.defaultPath = path }
}

// executable is the shared locate-and-run plumbing for all variants.
type executable struct {
	name        string
	envVar      string
	defaultPath string
	runner      Runner
	lookupEnv   func(string) (string, bool)
}

func newExecutable(name, envVar, defaultPath string, opts []Option) executable {
	e := executable{
		name:        name,
		envVar:      envVar,
		defaultPath: defaultPath,
		runner:      ExecRunner{},
		lookupEnv:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e *executable) Name() string { return e.name }

// EnvVar is the environment variable consulted before the default path.
func (e *executable) EnvVar() string { return e.envVar }

func (e *executable) InstallLocation() (string, bool) {
	if p, ok := e.lookupEnv(e.envVar); ok && p != "" && isExecutable(p) {
		return p, true
	}
	if isExecutable(e.defaultPath) {
		return e.defaultPath, true
	}
	return "", false
}

// run executes the analyzer with args. A non-zero exit becomes an ExecutionError.
func (e *executable) run(ctx context.Context, dir string, args ...string) (Output, error) {
	path, ok := e.InstallLocation()
	if !ok {
		return Output{}, fmt.Errorf("%s (set %s): %w", e.name, e.envVar, ErrUnavailable)
	}
	out, err := e.runner.Run(ctx, Command{Path: path, Args: args, Dir: dir})
	if err != nil {
		return out, &ExecutionError{Tool: e.name, Output: tail(out.combined(), 20), Err: err}
	}
	if out.ExitCode != 0 {
		return out, &ExecutionError{Tool: e.name, ExitCode: out.ExitCode, Output: tail(out.combined(), 20)}
	}
	return out, nil
}

func isExecutable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

var cweRe = regexp.MustCompile(`CWE-\d+`)

// cweIDs returns the distinct CWE identifiers in text, in first-seen order.
func cweIDs(text string) []string {
	return appendUnique(nil, cweRe.FindAllString(text, -1)...)
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		seen := false
		for _, have := range dst {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, id)
		}
	}
	return dst
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
		return "...(truncated)...\n" + strings.Join(lines, "\n")
	}
	return s
}
