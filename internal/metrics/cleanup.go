package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep metrics, labelled by job name
var (
	FilesDeletedTotal   *prometheus.CounterVec
	BytesFreedTotal     *prometheus.CounterVec
	DeleteFailuresTotal *prometheus.CounterVec
	DirsRemovedTotal    *prometheus.CounterVec

	// MatchedFiles is the size of the last match list (dry runs) or zero after a real pass
	MatchedFiles *prometheus.GaugeVec

	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
)

func initCleanupMetrics() {
	FilesDeletedTotal = newCounterVec(
		"agesweep_files_deleted_total",
		"Total number of expired files deleted.",
		"job",
	)
	BytesFreedTotal = newCounterVec(
		"agesweep_bytes_freed_total",
		"Total bytes freed by deleting expired files.",
		"job",
	)
	DeleteFailuresTotal = newCounterVec(
		"agesweep_delete_failures_total",
		"Total number of files or directories that could not be removed.",
		"job",
	)
	DirsRemovedTotal = newCounterVec(
		"agesweep_dirs_removed_total",
		"Total number of directories removed after becoming empty.",
		"job",
	)
	MatchedFiles = newGaugeVec(
		"agesweep_matched_files",
		"Number of files matching the job predicate at the last run.",
		"job",
	)
	RunDuration = newDurationHistogram(
		"agesweep_run_duration_seconds",
		"Duration of a full run over all jobs in seconds.",
	)
	LastRunTimestamp = newGauge(
		"agesweep_last_run_timestamp",
		"Timestamp of the last run (Unix epoch seconds).",
	)
}

func registerCleanupMetrics() {
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(DeleteFailuresTotal)
	prometheus.MustRegister(DirsRemovedTotal)
	prometheus.MustRegister(MatchedFiles)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(LastRunTimestamp)
}

// RecordRun stamps the last run time and observes its duration
func RecordRun(start time.Time) {
	LastRunTimestamp.Set(float64(start.Unix()))
	RunDuration.Observe(time.Since(start).Seconds())
}

func SetMatchedFiles(job string, n int) {
	MatchedFiles.WithLabelValues(job).Set(float64(n))
}
