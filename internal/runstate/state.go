// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runstate records the outcome of generate runs under a state
// directory (default .vcgen/run).
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bartekus/vcgen/internal/fsutil"
	"github.com/bartekus/vcgen/internal/scheduler"
)

const DefaultDir = ".vcgen/run"

// Store handles reading and writing run state.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	if baseDir == "" {
		baseDir = DefaultDir
	}
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) lastRunPath() string {
	return filepath.Join(s.baseDir, "last-run.json")
}

func (s *Store) workerPath(index int) string {
	return filepath.Join(s.baseDir, "workers", strconv.Itoa(index)+".json")
}

// ReadLastRun loads the last run summary. A missing file is a clean state
// and returns nil, nil.
func (s *Store) ReadLastRun() (*LastRun, error) {
	var last LastRun
	ok, err := readJSON(s.lastRunPath(), &last)
	if err != nil || !ok {
		return nil, err
	}
	return &last, nil
}

// ReadWorker loads one worker report from the last run.
func (s *Store) ReadWorker(index int) (*scheduler.WorkerReport, error) {
	var rep scheduler.WorkerReport
	ok, err := readJSON(s.workerPath(index), &rep)
	if err != nil || !ok {
		return nil, err
	}
	return &rep, nil
}

// WriteLastRun saves the run summary and one file per worker. Worker files
// of an earlier, wider run are removed first.
func (s *Store) WriteLastRun(last LastRun) error {
	if err := os.RemoveAll(filepath.Join(s.baseDir, "workers")); err != nil {
		return fmt.Errorf("clearing worker state: %w", err)
	}
	for _, w := range last.Workers {
		if err := writeJSON(s.workerPath(w.Index), w); err != nil {
			return fmt.Errorf("writing worker %d: %w", w.Index, err)
		}
	}
	if err := writeJSON(s.lastRunPath(), last); err != nil {
		return fmt.Errorf("writing last run: %w", err)
	}
	return nil
}

// Reset clears the state directory.
func (s *Store) Reset() error {
	return os.RemoveAll(s.baseDir)
}

func readJSON(path string, v any) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	return fsutil.AtomicWriteFunc(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
