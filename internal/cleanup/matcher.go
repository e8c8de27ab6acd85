package cleanup

import (
	"slices"

	"agesweep/internal/fsops"
)

// Predicate decides whether an entry is eligible for deletion under job.
type Predicate func(job Job, e Entry) bool

// FlatPredicate: not a dot entry, expired, extension accepted.
func FlatPredicate(job Job, e Entry) bool {
	return !e.IsDot() && job.Expired(e.ModTime) && job.MatchesExtension(e.Ext)
}

// RecursivePredicate: regular file, expired, extension accepted.
// Directories are left to the empty-directory pass.
func RecursivePredicate(job Job, e Entry) bool {
	return e.Regular && job.Expired(e.ModTime) && job.MatchesExtension(e.Ext)
}

// Option customizes a remover at construction.
type Option func(*matcher)

// WithDeleter replaces the default fsops.OSDeleter.
func WithDeleter(d fsops.Deleter) Option {
	return func(m *matcher) {
		m.deleter = d
	}
}

// WithObserver adds observers; they are called in the order given.
func WithObserver(obs ...Observer) Option {
	return func(m *matcher) {
		m.observers = append(m.observers, obs...)
	}
}

// WithLister replaces the enumeration strategy.
func WithLister(l Lister) Option {
	return func(m *matcher) {
		m.lister = l
	}
}

// WithKeepRoot stops the empty-directory pass from removing the job root.
func WithKeepRoot() Option {
	return func(m *matcher) {
		m.keepRoot = true
	}
}

// matcher is the state Flat and Recursive share: the job, how to enumerate,
// what is valid, and the memoized match list.
type matcher struct {
	job       Job
	lister    Lister
	valid     Predicate
	deleter   fsops.Deleter
	observers multiObserver
	keepRoot  bool

	files  []Entry
	cached bool
}

func newMatcher(job Job, lister Lister, valid Predicate, opts []Option) matcher {
	m := matcher{
		job:     job,
		lister:  lister,
		valid:   valid,
		deleter: fsops.OSDeleter{},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m *matcher) Job() Job { return m.job }

func (m *matcher) IsValid(e Entry) bool {
	return m.valid(m.job, e)
}

// MatchingFiles lists the valid entries once and serves the same result until
// a Delete pass removes something.
func (m *matcher) MatchingFiles() ([]Entry, error) {
	if !m.cached {
		var files []Entry
		if err := m.each(func(e Entry) { files = append(files, e) }); err != nil {
			return nil, err
		}
		m.files = files
		m.cached = true
	}
	return slices.Clone(m.files), nil
}

func (m *matcher) Count() (int, error) {
	files, err := m.MatchingFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// each runs fn on every valid entry of a fresh traversal.
func (m *matcher) each(fn func(Entry)) error {
	err := m.lister.List(m.job.root, func(e Entry) error {
		if m.IsValid(e) {
			fn(e)
		}
		return nil
	})
	if err != nil {
		return &TraversalError{Root: m.job.root, Err: err}
	}
	return nil
}

// remove unlinks one entry and reports the outcome; it never fails the pass.
func (m *matcher) remove(e Entry) bool {
	if err := m.deleter.Remove(e.Path); err != nil {
		m.observers.DeleteFailed(e, err)
		return false
	}
	m.observers.Deleted(e)
	return true
}

func (m *matcher) invalidate() {
	m.files = nil
	m.cached = false
}
