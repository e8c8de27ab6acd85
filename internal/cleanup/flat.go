package cleanup

// Flat removes expired entries among the direct children of the job root.
// It never descends into subdirectories.
type Flat struct {
	matcher
}

func NewFlat(job Job, opts ...Option) *Flat {
	return &Flat{matcher: newMatcher(job, FlatLister{}, FlatPredicate, opts)}
}

// Delete removes every valid entry and returns how many were removed.
// Entries that fail to delete are reported to observers and skipped.
func (f *Flat) Delete() (int, error) {
	deleted := 0
	err := f.each(func(e Entry) {
		if f.remove(e) {
			deleted++
		}
	})
	if deleted > 0 {
		f.invalidate()
	}
	return deleted, err
}
