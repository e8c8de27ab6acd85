// Package cleanup deletes files older than a cutoff from a directory, either
// from its direct children (Flat) or from the whole tree (Recursive).
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrNoCutoff     = errors.New("cutoff timestamp is required")
	ErrNotDirectory = errors.New("root is not a directory")
)

// Job is the immutable configuration of a removal pass.
type Job struct {
	root       string
	cutoff     time.Time
	extensions map[string]struct{}
}

// NewJob validates root and cutoff before any traversal happens.
// Extensions are matched case-insensitively; a leading dot is ignored and an
// empty list accepts every extension.
func NewJob(root string, cutoff time.Time, extensions []string) (Job, error) {
	if cutoff.IsZero() {
		return Job{}, ErrNoCutoff
	}
	if strings.TrimSpace(root) == "" {
		return Job{}, fmt.Errorf("%w: empty path", ErrNotDirectory)
	}
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return Job{}, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return Job{}, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		exts[ext] = struct{}{}
	}

	return Job{root: root, cutoff: cutoff, extensions: exts}, nil
}

func (j Job) Root() string { return j.root }

func (j Job) Cutoff() time.Time { return j.cutoff }

// Extensions returns the filter set, sorted.
func (j Job) Extensions() []string {
	out := make([]string, 0, len(j.extensions))
	for ext := range j.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Expired reports whether t is strictly before the cutoff. time.Time compares
// instants, so the zone of either side does not matter.
func (j Job) Expired(t time.Time) bool {
	return t.Before(j.cutoff)
}

// MatchesExtension expects ext already lowercased and without a dot.
func (j Job) MatchesExtension(ext string) bool {
	if len(j.extensions) == 0 {
		return true
	}
	_, ok := j.extensions[ext]
	return ok
}

// Remover is what both Flat and Recursive expose.
type Remover interface {
	Job() Job
	IsValid(e Entry) bool
	MatchingFiles() ([]Entry, error)
	Count() (int, error)
	Delete() (int, error)
}

// New picks the flat or recursive implementation.
func New(job Job, recursive, removeEmptyDirs bool, opts ...Option) Remover {
	if recursive {
		return NewRecursive(job, removeEmptyDirs, opts...)
	}
	return NewFlat(job, opts...)
}

// TraversalError means the listing itself failed; it aborts the call.
type TraversalError struct {
	Root string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("traverse %s: %v", e.Root, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }
