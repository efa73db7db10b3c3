package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maruel/ksid"
)

// tmpName returns a fresh temporary file name next to path.
//
// The temp file must live in the same directory as the target so the final
// rename stays on one filesystem.
func tmpName(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+"."+ksid.NewID().String()+".tmp")
}

// WriteFile replaces path with data atomically: data is written and synced to
// a temporary file in the same directory which is then renamed over path.
// Readers see either the old or the new content, never a partial file.
//
// An existing target keeps its permission bits; perm applies to new files.
// The temporary file is removed on failure.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		perm = fi.Mode().Perm()
	}
	tmp := tmpName(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) //nolint:gosec // G304: path is chosen by the owner of the store
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), f.Close(), os.Remove(tmp))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync temp file: %w", err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file to %s: %w", path, err), os.Remove(tmp))
	}
	return nil
}
