package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dirscrub/internal/disk"
)

// Run-level metrics
var (
	// ErrorsTotal tracks errors outside per-entry deletions (history, server)
	ErrorsTotal prometheus.Counter

	// RunsTotal counts scrub invocations by result (ok, failed, rejected)
	RunsTotal *prometheus.CounterVec

	// RunDuration tracks how long a whole scrub takes
	RunDuration prometheus.Histogram

	// LastRunTimestamp records Unix timestamp of the last scrub
	LastRunTimestamp prometheus.Gauge

	// MatchUsedBytes tracks the measured size of the last scrub's matches per root
	MatchUsedBytes *prometheus.GaugeVec

	// MatchFilesTotal tracks the regular file count of the last scrub's matches per root
	MatchFilesTotal *prometheus.GaugeVec
)

// initRunMetrics initializes all run-level metrics
func initRunMetrics() {
	ErrorsTotal = NewCounter(
		"dirscrub_errors_total",
		"Total number of internal errors encountered by dirscrub.",
	)

	RunsTotal = NewCounterVec(
		"dirscrub_runs_total",
		"Total scrub runs, by result.",
		[]string{"result"},
	)

	RunDuration = NewDurationHistogram(
		"dirscrub_run_duration_seconds",
		"Duration of scrub runs in seconds.",
	)

	LastRunTimestamp = NewSizeGauge(
		"dirscrub_last_run_timestamp",
		"Timestamp of the last scrub run (Unix epoch seconds).",
	)

	MatchUsedBytes = NewSizeGaugeVec(
		"dirscrub_match_used_bytes",
		"Bytes held by the matches of the last scrub of a root.",
		[]string{"root"},
	)

	MatchFilesTotal = NewSizeGaugeVec(
		"dirscrub_match_files_total",
		"Regular files held by the matches of the last scrub of a root.",
		[]string{"root"},
	)
}

// registerRunMetrics registers all run-level metrics with Prometheus
func registerRunMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(MatchUsedBytes)
	prometheus.MustRegister(MatchFilesTotal)
}

// RecordRun records a finished scrub
func RecordRun(result string, d time.Duration) {
	RunsTotal.WithLabelValues(result).Inc()
	RunDuration.Observe(d.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
}

// UpdateMatchMetrics publishes the measured size of a root's matches.
//
// Pass the combined stats from disk.Measure for every match of the run.
func UpdateMatchMetrics(root string, stats *disk.PathStats) {
	MatchUsedBytes.WithLabelValues(root).Set(float64(stats.UsedBytes))
	MatchFilesTotal.WithLabelValues(root).Set(float64(stats.FileCount))
}
