package stores

import (
	"fmt"
	"time"
)

// PathSource returns its own path from Read rather than reading any
// data, useful for feeding an externally-produced file's location (and
// modified time) into a plan without loading its contents into memory.
type PathSource struct {
	Path     string
	Required bool
}

// NewPathSource creates a required PathSource: ModifiedTime raises an
// error rather than reporting absence when the path is missing.
func NewPathSource(path string) *PathSource {
	return &PathSource{Path: path, Required: true}
}

// Read returns the path. If Required is false, it first confirms the
// path exists, returning an error if not.
func (s *PathSource) Read() (any, error) {
	if !s.Required {
		if _, ok, err := modifiedTime(s.Path); err != nil {
			return nil, err
		} else if !ok {
			return nil, fmt.Errorf("stores: source path %s does not exist", s.Path)
		}
	}
	return s.Path, nil
}

// Write always fails: a source is read-only.
func (s *PathSource) Write(value any) error {
	return fmt.Errorf("stores: path source %s does not support write", s.Path)
}

// ModifiedTime returns the path's modified time. When Required is true
// and the path is missing, it returns an error instead of ok=false.
func (s *PathSource) ModifiedTime() (time.Time, bool, error) {
	t, ok, err := modifiedTime(s.Path)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok && s.Required {
		return time.Time{}, false, fmt.Errorf("stores: failed to get modified time of required source path %s", s.Path)
	}
	return t, ok, nil
}

// LiteralSource returns a fixed value and modified time from the
// constructor, useful for wiring an in-memory value into a plan as if it
// came from a ValueStore.
type LiteralSource struct {
	Value        any
	Modified     time.Time
	HasModified  bool
}

// NewLiteralSource creates a LiteralSource with no recorded modified
// time; it is always considered stale relative to anything with a known
// modified time.
func NewLiteralSource(value any) *LiteralSource {
	return &LiteralSource{Value: value}
}

// NewLiteralSourceAt creates a LiteralSource with an explicit modified
// time.
func NewLiteralSourceAt(value any, modified time.Time) *LiteralSource {
	return &LiteralSource{Value: value, Modified: modified, HasModified: true}
}

func (s *LiteralSource) Read() (any, error) { return s.Value, nil }

func (s *LiteralSource) Write(value any) error {
	return fmt.Errorf("stores: literal source does not support write")
}

func (s *LiteralSource) ModifiedTime() (time.Time, bool, error) {
	return s.Modified, s.HasModified, nil
}

// ModifiedTimeSource carries only a modified time, with Read returning
// that same time. It is useful for forcing something to be recomputed on
// a fixed cadence (e.g. daily) regardless of whether any of its inputs
// changed.
type ModifiedTimeSource struct {
	Modified time.Time
}

// NewModifiedTimeSource creates a ModifiedTimeSource.
func NewModifiedTimeSource(modified time.Time) *ModifiedTimeSource {
	return &ModifiedTimeSource{Modified: modified}
}

func (s *ModifiedTimeSource) Read() (any, error) { return s.Modified, nil }

func (s *ModifiedTimeSource) Write(value any) error {
	return fmt.Errorf("stores: modified-time source does not support write")
}

func (s *ModifiedTimeSource) ModifiedTime() (time.Time, bool, error) {
	return s.Modified, true, nil
}
