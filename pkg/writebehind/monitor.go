package writebehind

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/burrow/pkg/metrics"
)

// Counters are the authoritative monitoring totals of a cache instance.
// Every pipeline stage exposes attempt/success/failure counts; the status
// snapshot copies them out.
type Counters struct {
	StorageReadInitialAttempts  atomic.Int64
	StorageReadInitialSuccesses atomic.Int64
	StorageReadInitialFailures  atomic.Int64

	StorageReadRefreshAttempts  atomic.Int64
	StorageReadRefreshSuccesses atomic.Int64
	StorageReadRefreshFailures  atomic.Int64
	StorageReadRefreshTooLate   atomic.Int64
	StorageReadDoNothing        atomic.Int64

	StorageWriteAttempts  atomic.Int64
	StorageWriteSuccesses atomic.Int64
	StorageWriteFailures  atomic.Int64

	CacheReadAttempts   atomic.Int64
	CacheReadTimeouts   atomic.Int64
	CacheReadInterrupts atomic.Int64
	CacheReadErrors     atomic.Int64

	CacheWriteAttempts       atomic.Int64
	CacheWriteSuccesses      atomic.Int64
	CacheWriteErrors         atomic.Int64
	CacheWriteTooManyUpdates atomic.Int64

	CheckCacheNullKey               atomic.Int64
	CheckCacheFullExceptions        atomic.Int64
	CheckCacheRemovedRetryExhausted atomic.Int64

	ReturnQueueExpiredFromCacheCount             atomic.Int64
	ReturnQueueRemovedFromCacheCount             atomic.Int64
	ReturnQueueRetainedCount                     atomic.Int64
	ReturnQueueRequeuedDueToPendingWriteCount    atomic.Int64
	ReturnQueueItemNotRetainedDueToMainQueueSize atomic.Int64
	ReturnQueueNegativeTimeSinceLastAccessError  atomic.Int64

	ExternalDataLossCount atomic.Int64
	ExternalErrorCount    atomic.Int64
	ExternalWarnCount     atomic.Int64

	FullCycleRetriesSuppressedCount atomic.Int64
}

// monitor aggregates counters, per-severity last-message tracking and the
// threshold histograms. It also mirrors the key totals into Prometheus,
// labelled by cache name.
type monitor struct {
	cacheName string
	clock     Clock

	counters Counters

	// lastMessageTimestamps is updated for every message offered,
	// whether or not throttling let it through; lastLoggedTexts only for
	// messages actually emitted. The two are not atomically consistent.
	lastMessageTimestamps [numSeverities]atomic.Int64
	textMu                sync.Mutex
	lastLoggedTexts       [numSeverities]string

	// bucket i counts samples below thresholds[i]; the last bucket
	// counts everything at or above the largest threshold
	fullCycleThresholds []int64
	timeSinceThresholds []int64 // milliseconds
	fullCycleBuckets    [6]atomic.Int64
	timeSinceBuckets    [6]atomic.Int64
}

func newMonitor(opts *Options, clock Clock) *monitor {
	m := &monitor{
		cacheName: opts.CacheName,
		clock:     clock,
	}
	for _, t := range opts.MonitoringFullCacheCyclesThresholds {
		m.fullCycleThresholds = append(m.fullCycleThresholds, int64(t))
	}
	for _, t := range opts.MonitoringTimeSinceAccessThresholds {
		m.timeSinceThresholds = append(m.timeSinceThresholds, t.Milliseconds())
	}
	return m
}

func (m *monitor) noteMessage(sev Severity) {
	m.lastMessageTimestamps[sev].Store(m.clock.Now())
	switch sev {
	case SeverityExternalWarn:
		m.counters.ExternalWarnCount.Add(1)
	case SeverityExternalError:
		m.counters.ExternalErrorCount.Add(1)
	case SeverityExternalDataLoss:
		m.counters.ExternalDataLossCount.Add(1)
	}
}

func (m *monitor) noteLogged(sev Severity, text string) {
	m.textMu.Lock()
	m.lastLoggedTexts[sev] = text
	m.textMu.Unlock()
}

func (m *monitor) lastLogged(sev Severity) string {
	m.textMu.Lock()
	defer m.textMu.Unlock()
	return m.lastLoggedTexts[sev]
}

// sampleEntry records an entry passing return-queue processing into the
// two threshold histograms
func (m *monitor) sampleEntry(fullCycles int64, timeSinceAccessMillis int64) {
	m.fullCycleBuckets[bucketFor(fullCycles, m.fullCycleThresholds)].Add(1)
	m.timeSinceBuckets[bucketFor(timeSinceAccessMillis, m.timeSinceThresholds)].Add(1)
}

func bucketFor(v int64, thresholds []int64) int {
	for i, t := range thresholds {
		if v < t {
			return i
		}
	}
	return len(thresholds)
}

// Storage-side helpers, mirrored to Prometheus.

func (m *monitor) storageReadAttempt(refresh bool) {
	kind := "initial"
	if refresh {
		kind = "refresh"
		m.counters.StorageReadRefreshAttempts.Add(1)
	} else {
		m.counters.StorageReadInitialAttempts.Add(1)
	}
	metrics.StorageReadsTotal.WithLabelValues(m.cacheName, kind, "attempt").Inc()
}

func (m *monitor) storageReadSuccess(refresh bool) {
	kind := "initial"
	if refresh {
		kind = "refresh"
		m.counters.StorageReadRefreshSuccesses.Add(1)
	} else {
		m.counters.StorageReadInitialSuccesses.Add(1)
	}
	metrics.StorageReadsTotal.WithLabelValues(m.cacheName, kind, "success").Inc()
}

func (m *monitor) storageReadFailure(refresh bool) {
	kind := "initial"
	if refresh {
		kind = "refresh"
		m.counters.StorageReadRefreshFailures.Add(1)
	} else {
		m.counters.StorageReadInitialFailures.Add(1)
	}
	metrics.StorageReadsTotal.WithLabelValues(m.cacheName, kind, "failure").Inc()
}

func (m *monitor) storageWriteAttempt() {
	m.counters.StorageWriteAttempts.Add(1)
	metrics.StorageWritesTotal.WithLabelValues(m.cacheName, "attempt").Inc()
}

func (m *monitor) storageWriteSuccess() {
	m.counters.StorageWriteSuccesses.Add(1)
	metrics.StorageWritesTotal.WithLabelValues(m.cacheName, "success").Inc()
}

func (m *monitor) storageWriteFailure() {
	m.counters.StorageWriteFailures.Add(1)
	metrics.StorageWritesTotal.WithLabelValues(m.cacheName, "failure").Inc()
}

func (m *monitor) cacheReadOutcome(outcome string) {
	metrics.CacheReadsTotal.WithLabelValues(m.cacheName, outcome).Inc()
}

func (m *monitor) cacheWriteOutcome(outcome string) {
	metrics.CacheWritesTotal.WithLabelValues(m.cacheName, outcome).Inc()
}
