// Package golden compares test output with files under testdata/.
// Run tests with -update to rewrite the files.
package golden

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var Update = flag.Bool("update", false, "update golden files")

// TestdataDir is the testdata directory next to the calling test file.
func TestdataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// Assert compares got with testdata/<name>.golden, writing the file first
// when -update is set.
func Assert(t *testing.T, dir, name, got string) {
	t.Helper()
	if *Update {
		write(t, dir, name, got)
	}
	want, ok := read(t, dir, name)
	if !ok {
		t.Fatalf("golden file %s.golden missing; run with -update", name)
	}
	assert.Equal(t, want, got)
}

func read(t *testing.T, dir, name string) (string, bool) {
	t.Helper()
	path := goldenPath(t, dir, name)
	data, err := os.ReadFile(path) //nolint:gosec // testdata path controlled by test
	if os.IsNotExist(err) {
		return "", false
	}
	if err != nil {
		t.Fatalf("read golden %s: %v", path, err)
	}
	return string(data), true
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir testdata: %v", err)
	}
	path := goldenPath(t, dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write golden %s: %v", path, err)
	}
}

func goldenPath(t *testing.T, dir, name string) string {
	t.Helper()
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		t.Fatalf("invalid golden name %q", name)
	}
	return filepath.Join(dir, name+".golden")
}
