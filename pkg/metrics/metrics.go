package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache-side operation metrics
	CacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_cache_reads_total",
			Help: "Total number of client cache reads by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_cache_writes_total",
			Help: "Total number of client cache writes by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// Storage-side operation metrics
	StorageReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_storage_reads_total",
			Help: "Total number of storage reads by cache, kind and outcome",
		},
		[]string{"cache", "kind", "outcome"},
	)

	StorageWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_storage_writes_total",
			Help: "Total number of storage writes by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	StorageReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_storage_read_duration_seconds",
			Help:    "Storage read duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache"},
	)

	StorageWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_storage_write_duration_seconds",
			Help:    "Storage write duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache"},
	)

	// Pipeline metrics
	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_queue_size",
			Help: "Current number of items in a pipeline queue",
		},
		[]string{"cache", "queue"},
	)

	CacheElements = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_cache_elements",
			Help: "Current number of resident cache entries",
		},
		[]string{"cache"},
	)

	EntriesExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_entries_expired_total",
			Help: "Total number of entries expired from the return queue",
		},
		[]string{"cache"},
	)

	EntriesRetainedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_entries_retained_total",
			Help: "Total number of entries retained for another full cycle",
		},
		[]string{"cache"},
	)

	// Dispatcher metrics
	DispatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_dispatch_requests_total",
			Help: "Total number of dispatched requests by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	DispatchInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_dispatch_in_flight",
			Help: "Current number of in-flight dispatch requests",
		},
		[]string{"service"},
	)

	DispatchAttemptDelay = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_dispatch_attempt_delay_seconds",
			Help:    "Delay applied before a retry attempt in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(CacheReadsTotal)
	prometheus.MustRegister(CacheWritesTotal)
	prometheus.MustRegister(StorageReadsTotal)
	prometheus.MustRegister(StorageWritesTotal)
	prometheus.MustRegister(StorageReadDuration)
	prometheus.MustRegister(StorageWriteDuration)
	prometheus.MustRegister(QueueSize)
	prometheus.MustRegister(CacheElements)
	prometheus.MustRegister(EntriesExpiredTotal)
	prometheus.MustRegister(EntriesRetainedTotal)
	prometheus.MustRegister(DispatchRequestsTotal)
	prometheus.MustRegister(DispatchInFlight)
	prometheus.MustRegister(DispatchAttemptDelay)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
