package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for EntriesTotal
const (
	OutcomeRemoved     = "removed"
	OutcomeAlreadyGone = "already_gone"
	OutcomeFailed      = "failed"
)

// Deletion subsystem metrics
var (
	// EntriesTotal counts resolved matches by outcome
	EntriesTotal *prometheus.CounterVec

	// FailuresTotal counts failed matches by error kind
	FailuresTotal *prometheus.CounterVec

	// RemediationsTotal counts permission repairs by result (ok, failed)
	RemediationsTotal *prometheus.CounterVec

	// FallbacksTotal counts removals retried on the blocking worker pool
	FallbacksTotal prometheus.Counter

	// BytesFreedTotal tracks measured bytes of removed matches
	BytesFreedTotal prometheus.Counter

	// InFlightDeletions tracks deletions currently holding a limiter permit
	InFlightDeletions prometheus.Gauge

	// LayerDuration tracks how long each depth layer takes to resolve
	LayerDuration prometheus.Histogram
)

// initScrubMetrics initializes all deletion subsystem metrics
func initScrubMetrics() {
	EntriesTotal = NewCounterVec(
		"dirscrub_entries_total",
		"Total matched entries resolved, by outcome.",
		[]string{"outcome"},
	)

	FailuresTotal = NewCounterVec(
		"dirscrub_entry_failures_total",
		"Total matched entries that could not be removed, by error kind.",
		[]string{"kind"},
	)

	RemediationsTotal = NewCounterVec(
		"dirscrub_remediations_total",
		"Total permission remediations attempted, by result.",
		[]string{"result"},
	)

	FallbacksTotal = NewCounter(
		"dirscrub_fallback_removals_total",
		"Total removals retried on the blocking worker pool.",
	)

	BytesFreedTotal = NewBytesCounter(
		"dirscrub_bytes_freed_total",
		"Total bytes freed by removed entries (when measured).",
	)

	InFlightDeletions = NewGauge(
		"dirscrub_inflight_deletions",
		"Number of deletions currently in flight.",
	)

	LayerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dirscrub_layer_duration_seconds",
		Help:    "Duration of one depth layer of deletions in seconds.",
		Buckets: LayerBuckets,
	})
}

// registerScrubMetrics registers all deletion metrics with Prometheus
func registerScrubMetrics() {
	prometheus.MustRegister(EntriesTotal)
	prometheus.MustRegister(FailuresTotal)
	prometheus.MustRegister(RemediationsTotal)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(InFlightDeletions)
	prometheus.MustRegister(LayerDuration)
}

// RecordEntry records one resolved match. kind is only used for failures.
func RecordEntry(outcome, kind string, bytes int64) {
	EntriesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFailed {
		FailuresTotal.WithLabelValues(kind).Inc()
		return
	}
	if bytes > 0 {
		BytesFreedTotal.Add(float64(bytes))
	}
}

// RecordRemediation records one permission repair attempt
func RecordRemediation(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	RemediationsTotal.WithLabelValues(result).Inc()
}

// RecordLayer observes the duration of one layer
func RecordLayer(d time.Duration) {
	LayerDuration.Observe(d.Seconds())
}
