package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinary creates an executable file so InstallLocation resolves.
func fakeBinary(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envWith(key, val string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		if k == key {
			return val, true
		}
		return "", false
	}
}

func TestInstallLocation(t *testing.T) {
	def := fakeBinary(t, "flawfinder")
	override := fakeBinary(t, "flawfinder-2.0")

	t.Run("env override wins", func(t *testing.T) {
		f := NewFlawfinder(WithDefaultPath(def), WithLookupEnv(envWith(FlawfinderEnvVar, override)))
		loc, ok := f.InstallLocation()
		require.True(t, ok)
		assert.Equal(t, override, loc)
	})

	t.Run("missing override falls back to default", func(t *testing.T) {
		f := NewFlawfinder(WithDefaultPath(def), WithLookupEnv(envWith(FlawfinderEnvVar, "/nonexistent/ff")))
		loc, ok := f.InstallLocation()
		require.True(t, ok)
		assert.Equal(t, def, loc)
	})

	t.Run("nothing installed", func(t *testing.T) {
		f := NewFlawfinder(WithDefaultPath(filepath.Join(t.TempDir(), "none")), WithLookupEnv(noEnv))
		_, ok := f.InstallLocation()
		assert.False(t, ok)
	})

	t.Run("non-executable file is ignored", func(t *testing.T) {
		plain := filepath.Join(t.TempDir(), "cppcheck")
		require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
		c := NewCppcheck(WithDefaultPath(plain), WithLookupEnv(noEnv))
		_, ok := c.InstallLocation()
		assert.False(t, ok)
	})
}

func TestScan_Unavailable(t *testing.T) {
	called := false
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		called = true
		return Output{}, nil
	})
	f := NewFlawfinder(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(""))

	_, err := f.Scan(context.Background(), "a.c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, called)
}

func TestScan_NonZeroExit(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		return Output{Stderr: []byte("boom"), ExitCode: 2}, nil
	})
	c := NewCppcheck(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(fakeBinary(t, "cppcheck")))

	_, err := c.Scan(context.Background(), "a.c")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, CppcheckName, execErr.Tool)
	assert.Equal(t, 2, execErr.ExitCode)
	assert.Equal(t, "boom", execErr.Output)
}

func TestScan_RunnerError(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		return Output{}, context.DeadlineExceeded
	})
	f := NewFlawfinder(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(fakeBinary(t, "flawfinder")))

	_, err := f.Scan(context.Background(), "a.c")
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlawfinder_Scan(t *testing.T) {
	bin := fakeBinary(t, "flawfinder")
	stdout := "/tmp/scan/src/a.c:12:3:  [4] (buffer) strcpy:Does not check for buffer overflows when copying to destination [MS-banned] (CWE-120).  Consider using snprintf, strcpy_s, or strlcpy (warning: strncpy easily misused).\n" +
		"/tmp/scan/src/a.c:30:5:  [2] (buffer) char:Statically-sized arrays can be improperly restricted, leading to potential overflows or other issues (CWE-119!/CWE-120).  Perform bounds checking.\n" +
		"\n"

	var got Command
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		got = cmd
		return Output{Stdout: []byte(stdout)}, nil
	})
	f := NewFlawfinder(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(bin))

	res, err := f.Scan(context.Background(), "/tmp/scan/src/a.c")
	require.NoError(t, err)

	assert.Equal(t, bin, got.Path)
	assert.Equal(t, []string{"--singleline", "--dataonly", "--quiet", "/tmp/scan/src/a.c"}, got.Args)
	require.Len(t, res.Findings, 2)
	assert.Contains(t, res.Findings[0], "12:3: [4] (buffer) strcpy")
	assert.NotContains(t, res.Findings[0], "/tmp/scan")
	assert.Equal(t, []string{"CWE-120", "CWE-119"}, res.WeaknessIDs)
}

func TestFlawfinder_NoHits(t *testing.T) {
	res, err := parseFlawfinder("")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Findings)
}

func TestScan_UnparseableOutput(t *testing.T) {
	garbage := []byte("Traceback (most recent call last):\n  garbage that is not a hit\n")
	tests := []struct {
		name string
		tool Tool
	}{
		{
			FlawfinderName,
			NewFlawfinder(WithLookupEnv(noEnv), WithDefaultPath(fakeBinary(t, "flawfinder")),
				WithRunner(RunnerFunc(func(context.Context, Command) (Output, error) {
					return Output{Stdout: garbage}, nil
				}))),
		},
		{
			CppcheckName,
			NewCppcheck(WithLookupEnv(noEnv), WithDefaultPath(fakeBinary(t, "cppcheck")),
				WithRunner(RunnerFunc(func(context.Context, Command) (Output, error) {
					return Output{Stderr: garbage}, nil
				}))),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.tool.Scan(context.Background(), "a.c")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExecutionFailed)
			assert.Contains(t, err.Error(), "unparseable line")
			assert.Nil(t, res.Findings)

			var execErr *ExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, tt.name, execErr.Tool)
		})
	}
}

func TestCppcheck_Parse(t *testing.T) {
	stderr := "7:5:error:arrayIndexOutOfBounds:788:Array 'buf[4]' accessed at index 4, which is out of bounds.\n" +
		"9:0:style:unusedVariable:563:Unused variable: tmp\n" +
		"0:0:information:missingIncludeSystem:0:Include file not found.\n" +
		"nofile:0:0:information:Active checkers: 106/592\n" +
		"\n" +
		"11:3:warning:uninitvar:0:Uninitialized variable: p\n"

	res, err := parseCppcheck(stderr)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"7:5: error (arrayIndexOutOfBounds) Array 'buf[4]' accessed at index 4, which is out of bounds.",
		"9:0: style (unusedVariable) Unused variable: tmp",
		"11:3: warning (uninitvar) Uninitialized variable: p",
	}, res.Findings)
	assert.Equal(t, []string{"CWE-788", "CWE-563"}, res.WeaknessIDs)
}

func TestInfer_Parse(t *testing.T) {
	raw := []byte(`[
	  {"bug_type": "NULL_DEREFERENCE", "qualifier": "pointer p last assigned on line 3 could be null", "severity": "ERROR", "line": 5, "column": 3},
	  {"bug_type": "MEMORY_LEAK_C", "qualifier": "memory allocated by malloc is not freed", "severity": "ERROR", "line": 9, "column": -1},
	  {"bug_type": "NULL_DEREFERENCE", "qualifier": "again", "severity": "ERROR", "line": 12, "column": 1}
	]`)

	res, err := parseInfer(raw)
	require.NoError(t, err)
	assert.Len(t, res.Findings, 3)
	assert.Equal(t, "5:3: ERROR NULL_DEREFERENCE: pointer p last assigned on line 3 could be null", res.Findings[0])
	assert.Equal(t, []string{"CWE-476", "CWE-401"}, res.WeaknessIDs)

	_, err = parseInfer([]byte("not json"))
	require.Error(t, err)
}

func TestInfer_ScanReadsReport(t *testing.T) {
	bin := fakeBinary(t, "infer")
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		var results string
		for i, a := range cmd.Args {
			if a == "--results-dir" {
				results = cmd.Args[i+1]
			}
		}
		if err := os.MkdirAll(results, 0o755); err != nil {
			return Output{}, err
		}
		report := `[{"bug_type":"RESOURCE_LEAK","qualifier":"resource of type FILE","severity":"ERROR","line":4,"column":2}]`
		return Output{}, os.WriteFile(filepath.Join(results, "report.json"), []byte(report), 0o644)
	})
	i := NewInfer(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(bin))

	res, err := i.Scan(context.Background(), "/tmp/x.c")
	require.NoError(t, err)
	assert.Equal(t, []string{"CWE-772"}, res.WeaknessIDs)
}

func TestInfer_MissingReport(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (Output, error) {
		return Output{}, nil
	})
	i := NewInfer(WithRunner(runner), WithLookupEnv(noEnv), WithDefaultPath(fakeBinary(t, "infer")))

	_, err := i.Scan(context.Background(), "/tmp/x.c")
	assert.ErrorIs(t, err, ErrExecutionFailed)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "a\nb", tail("a\nb\n", 5))
	assert.Equal(t, "...(truncated)...\nc\nd", tail("a\nb\nc\nd", 2))
}
