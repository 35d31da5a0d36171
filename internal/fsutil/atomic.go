// SPDX-License-Identifier: AGPL-3.0-or-later

package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// syncFile flushes the temp file to disk before it replaces path.
var syncFile = (*os.File).Sync

// AtomicWrite writes content to path atomically by writing to a temp file and renaming it.
func AtomicWrite(path string, content []byte) error {
	return AtomicWriteFunc(path, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

// AtomicWriteFunc streams into a temp file next to path, syncs it and renames
// it into place only if write succeeds. On failure path is left untouched.
func AtomicWriteFunc(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if err := write(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing content: %w", err)
	}
	if err := syncFile(tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), path); err != nil {
		return fmt.Errorf("moving temp file to %s: %w", path, err)
	}

	return nil
}
