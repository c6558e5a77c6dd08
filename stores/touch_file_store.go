package stores

import (
	"fmt"
	"os"
	"time"
)

// TouchFileStore stores nothing but the file's existence and modified
// time. Read fails if the file is non-empty, since a touch file is only
// ever supposed to record that a side effect happened, not carry a
// payload.
type TouchFileStore struct {
	Path string
}

// NewTouchFileStore creates a TouchFileStore rooted at path.
func NewTouchFileStore(path string) *TouchFileStore {
	return &TouchFileStore{Path: path}
}

// Read returns nil after verifying the touch file is empty.
func (s *TouchFileStore) Read() (any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("stores: read touch file %s: %w", s.Path, err)
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("stores: touch file %s exists but is not empty", s.Path)
	}
	return nil, nil
}

// Write requires value to be nil and stages an empty file into place.
func (s *TouchFileStore) Write(value any) error {
	if value != nil {
		return fmt.Errorf("stores: touch file %s: value must be nil, got %T", s.Path, value)
	}
	return stagedWrite(s.Path, nil, 0o600)
}

// ModifiedTime returns the touch file's modified time, or ok=false if it
// does not exist.
func (s *TouchFileStore) ModifiedTime() (time.Time, bool, error) {
	return modifiedTime(s.Path)
}
