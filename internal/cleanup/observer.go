package cleanup

import (
	"errors"
	"fmt"
	"log/slog"
)

// Observer is told about every per-entry outcome of a Delete pass. Failures
// never abort the pass; this is the only place they surface.
type Observer interface {
	Deleted(e Entry)
	DeleteFailed(e Entry, err error)
	DirRemoved(path string)
	DirRemoveFailed(path string, err error)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) Deleted(Entry) {}
func (NopObserver) DeleteFailed(Entry, error) {}
func (NopObserver) DirRemoved(string) {}
func (NopObserver) DirRemoveFailed(string, error) {}

type multiObserver []Observer

func (m multiObserver) Deleted(e Entry) {
	for _, o := range m {
		o.Deleted(e)
	}
}

func (m multiObserver) DeleteFailed(e Entry, err error) {
	for _, o := range m {
		o.DeleteFailed(e, err)
	}
}

func (m multiObserver) DirRemoved(path string) {
	for _, o := range m {
		o.DirRemoved(path)
	}
}

func (m multiObserver) DirRemoveFailed(path string, err error) {
	for _, o := range m {
		o.DirRemoveFailed(path, err)
	}
}

// Failure is one entry that could not be removed.
type Failure struct {
	Path string
	Dir  bool
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// FailureCollector keeps every failure in the order it happened.
type FailureCollector struct {
	NopObserver
	failures []Failure
}

func (c *FailureCollector) DeleteFailed(e Entry, err error) {
	c.failures = append(c.failures, Failure{Path: e.Path, Err: err})
}

func (c *FailureCollector) DirRemoveFailed(path string, err error) {
	c.failures = append(c.failures, Failure{Path: path, Dir: true, Err: err})
}

func (c *FailureCollector) Failures() []Failure {
	return c.failures
}

// Err joins all failures, or returns nil when there were none.
func (c *FailureCollector) Err() error {
	errs := make([]error, 0, len(c.failures))
	for _, f := range c.failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (c *FailureCollector) Reset() {
	c.failures = nil
}

// LogObserver writes outcomes to a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Deleted(e Entry) {
	o.Logger.Debug("deleted file", "path", e.Path, "size", e.Size, "mod_time", e.ModTime)
}

func (o LogObserver) DeleteFailed(e Entry, err error) {
	o.Logger.Warn("failed to delete file", "path", e.Path, "error", err)
}

func (o LogObserver) DirRemoved(path string) {
	o.Logger.Debug("removed empty directory", "path", path)
}

func (o LogObserver) DirRemoveFailed(path string, err error) {
	o.Logger.Warn("failed to remove empty directory", "path", path, "error", err)
}
