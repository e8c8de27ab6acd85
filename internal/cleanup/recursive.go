package cleanup

import "agesweep/internal/fsops"

// Recursive removes expired regular files anywhere below the job root, then
// optionally removes directories the pass left empty.
//
// Only directories that directly lost a file are checked. A parent that
// becomes empty because its only child directory was removed stays in place
// until a later pass deletes a file inside it.
type Recursive struct {
	matcher
	removeEmptyDirs bool
	tracked         dirSet
}

func NewRecursive(job Job, removeEmptyDirs bool, opts ...Option) *Recursive {
	return &Recursive{
		matcher:         newMatcher(job, WalkLister{}, RecursivePredicate, opts),
		removeEmptyDirs: removeEmptyDirs,
	}
}

func (r *Recursive) RemoveEmptyDirs() bool { return r.removeEmptyDirs }

// Delete returns the number of files removed; directories are not counted.
// The empty-directory pass runs only after a complete traversal.
func (r *Recursive) Delete() (int, error) {
	defer r.tracked.reset()

	deleted := 0
	err := r.each(func(e Entry) {
		if r.remove(e) {
			deleted++
			r.tracked.add(e.Parent())
		}
	})
	if deleted > 0 {
		r.invalidate()
	}
	if err != nil {
		return deleted, err
	}

	if r.removeEmptyDirs {
		r.removeEmpty()
	}
	return deleted, nil
}

func (r *Recursive) removeEmpty() {
	for _, dir := range r.tracked.paths {
		if r.keepRoot && dir == r.job.root {
			continue
		}
		empty, err := fsops.IsDirEmpty(dir)
		if err != nil {
			r.observers.DirRemoveFailed(dir, err)
			continue
		}
		if !empty {
			continue
		}
		if err := r.deleter.RemoveDir(dir); err != nil {
			r.observers.DirRemoveFailed(dir, err)
			continue
		}
		r.observers.DirRemoved(dir)
	}
}

// dirSet is an insertion-ordered set of directory paths.
type dirSet struct {
	paths []string
	seen  map[string]struct{}
}

func (s *dirSet) add(path string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[path]; ok {
		return
	}
	s.seen[path] = struct{}{}
	s.paths = append(s.paths, path)
}

func (s *dirSet) reset() {
	s.paths = nil
	s.seen = nil
}
