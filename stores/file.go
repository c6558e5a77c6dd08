// Package stores provides ValueStore implementations for uberjob:
// JSON-file storage, touch-file side-effect markers, and read-only
// source adapters over paths, literal values, and bare modified times.
package stores

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// stagedWrite writes data to path atomically: it stages the bytes at
// path+".STAGING", then renames the staging file over path. If write
// fails partway through, the staging file is removed rather than left
// behind. Grounded on the reference file-store's own staged_write
// context manager, and on the same rename-into-place pattern the
// module's teacher uses for its own JSON store file.
func stagedWrite(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("stores: create directory for %s: %w", path, err)
		}
	}
	staging := path + ".STAGING"
	if err := os.WriteFile(staging, data, perm); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("stores: write staging file for %s: %w", path, err)
	}
	if err := os.Rename(staging, path); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("stores: replace %s: %w", path, err)
	}
	return nil
}

// modifiedTime returns the modified time of path, or ok=false if it does
// not exist or is inaccessible.
func modifiedTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stores: stat %s: %w", path, err)
	}
	return info.ModTime(), true, nil
}
