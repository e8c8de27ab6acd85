package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"agesweep/internal/cleanup"
)

// Observer feeds per-entry sweep outcomes into the job-labelled counters.
// Init must have been called.
type Observer struct {
	deleted  prometheus.Counter
	bytes    prometheus.Counter
	failures prometheus.Counter
	dirs     prometheus.Counter
}

func NewObserver(job string) *Observer {
	return &Observer{
		deleted:  FilesDeletedTotal.WithLabelValues(job),
		bytes:    BytesFreedTotal.WithLabelValues(job),
		failures: DeleteFailuresTotal.WithLabelValues(job),
		dirs:     DirsRemovedTotal.WithLabelValues(job),
	}
}

func (o *Observer) Deleted(e cleanup.Entry) {
	o.deleted.Inc()
	o.bytes.Add(float64(e.Size))
}

func (o *Observer) DeleteFailed(cleanup.Entry, error) {
	o.failures.Inc()
}

func (o *Observer) DirRemoved(string) {
	o.dirs.Inc()
}

func (o *Observer) DirRemoveFailed(string, error) {
	o.failures.Inc()
}
