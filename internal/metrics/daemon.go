package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Daemon metrics
var (
	// ErrorsTotal counts job-level failures (traversal errors, bad roots)
	ErrorsTotal prometheus.Counter

	FreeSpacePercent *prometheus.GaugeVec
)

func initDaemonMetrics() {
	ErrorsTotal = newCounter(
		"agesweep_errors_total",
		"Total number of job-level errors.",
	)
	FreeSpacePercent = newGaugeVec(
		"agesweep_free_space_percent",
		"Free space percentage of the filesystem holding a job path.",
		"path",
	)
}

func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(FreeSpacePercent)
}

func UpdateFreeSpacePercent(path string, percent float64) {
	FreeSpacePercent.WithLabelValues(path).Set(percent)
}
