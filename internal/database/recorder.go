package database

import (
	"log/slog"

	"agesweep/internal/cleanup"
)

// Recorder writes sweep outcomes of one job to the history.
// Database errors are logged and never interrupt the sweep.
type Recorder struct {
	db     *HistoryDB
	job    string
	logger *slog.Logger
}

func NewRecorder(db *HistoryDB, job string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, job: job, logger: logger}
}

func (r *Recorder) record(e Event) {
	e.Job = r.job
	if err := r.db.Record(e); err != nil {
		r.logger.Error("failed to record history", "job", r.job, "path", e.Path, "action", e.Action, "error", err)
	}
}

func (r *Recorder) Deleted(e cleanup.Entry) {
	r.record(Event{Action: ActionDelete, Path: e.Path, ObjectType: "file", Size: e.Size, ModTime: e.ModTime})
}

func (r *Recorder) DeleteFailed(e cleanup.Entry, err error) {
	r.record(Event{Action: ActionError, Path: e.Path, ObjectType: "file", Size: e.Size, ModTime: e.ModTime, Error: err.Error()})
}

func (r *Recorder) DirRemoved(path string) {
	r.record(Event{Action: ActionRmdir, Path: path, ObjectType: "directory"})
}

func (r *Recorder) DirRemoveFailed(path string, err error) {
	r.record(Event{Action: ActionRmdirError, Path: path, ObjectType: "directory", Error: err.Error()})
}

// Matched records a dry-run match list in a single transaction.
func (r *Recorder) Matched(entries []cleanup.Entry) {
	events := make([]Event, 0, len(entries))
	for _, e := range entries {
		objectType := "file"
		if e.IsDir {
			objectType = "directory"
		}
		events = append(events, Event{
			Action:     ActionMatch,
			Job:        r.job,
			Path:       e.Path,
			ObjectType: objectType,
			Size:       e.Size,
			ModTime:    e.ModTime,
		})
	}
	if err := r.db.RecordBatch(events); err != nil {
		r.logger.Error("failed to record dry-run matches", "job", r.job, "count", len(events), "error", err)
	}
}
