package writebehind

import "time"

// CounterSnapshot is a point-in-time copy of every monitoring total
type CounterSnapshot struct {
	StorageReadInitialAttempts  int64
	StorageReadInitialSuccesses int64
	StorageReadInitialFailures  int64

	StorageReadRefreshAttempts  int64
	StorageReadRefreshSuccesses int64
	StorageReadRefreshFailures  int64
	StorageReadRefreshTooLate   int64
	StorageReadDoNothing        int64

	StorageWriteAttempts  int64
	StorageWriteSuccesses int64
	StorageWriteFailures  int64

	CacheReadAttempts   int64
	CacheReadTimeouts   int64
	CacheReadInterrupts int64
	CacheReadErrors     int64

	CacheWriteAttempts       int64
	CacheWriteSuccesses      int64
	CacheWriteErrors         int64
	CacheWriteTooManyUpdates int64

	CheckCacheNullKey               int64
	CheckCacheFullExceptions        int64
	CheckCacheRemovedRetryExhausted int64

	ReturnQueueExpiredFromCacheCount             int64
	ReturnQueueRemovedFromCacheCount             int64
	ReturnQueueRetainedCount                     int64
	ReturnQueueRequeuedDueToPendingWriteCount    int64
	ReturnQueueItemNotRetainedDueToMainQueueSize int64
	ReturnQueueNegativeTimeSinceLastAccessError  int64

	ExternalDataLossCount int64
	ExternalErrorCount    int64
	ExternalWarnCount     int64

	FullCycleRetriesSuppressedCount int64
}

// Status is an immutable snapshot of a cache's control state, worker
// liveness, queue sizes, counters, threshold histograms and last-message
// tracking.
type Status struct {
	CacheName    string
	ControlState ControlState

	EverythingAlive        bool
	ReadQueueWorkerAlive   bool
	WriteQueueWorkerAlive  bool
	MainQueueWorkerAlive   bool
	ReturnQueueWorkerAlive bool
	ReadPoolAlive          bool
	WritePoolAlive         bool

	CurrentCacheSize int
	MainQueueSize    int
	ReturnQueueSize  int
	ReadQueueSize    int
	WriteQueueSize   int

	Counters CounterSnapshot

	// Bucket i counts samples below threshold i; the sixth bucket counts
	// everything at or above the largest threshold
	FullCycleBuckets       [6]int64
	TimeSinceAccessBuckets [6]int64

	// Last-message tracking per severity name. Timestamps update for
	// every message offered; texts only for messages actually emitted.
	LastMessageTimestamps map[string]int64
	LastLoggedMessages    map[string]string

	LastWarnTimestamp  int64
	LastWarnText       string
	LastErrorTimestamp int64
	LastErrorText      string
	LastFatalTimestamp int64
	LastFatalText      string

	// EventsDropped counts pipeline events lost to full subscriber
	// buffers; zero when event notification is disabled
	EventsDropped int64

	MaxCacheElementsHardLimit int
	UptimeMillis              int64
	TakenAtMillis             int64
}

// Status returns a snapshot no older than maxAge, rebuilding it on
// demand
func (c *Cache[V, U, W]) Status(maxAge time.Duration) Status {
	now := c.clock.Now()
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.cachedStatus != nil && now-c.cachedStatusAt <= maxAge.Milliseconds() {
		return *c.cachedStatus
	}
	st := c.buildStatus(now)
	c.cachedStatus = &st
	c.cachedStatusAt = now
	return st
}

func (c *Cache[V, U, W]) buildStatus(now int64) Status {
	ctl := c.ControlState()
	st := Status{
		CacheName:    c.opts.CacheName,
		ControlState: ctl,

		ReadQueueWorkerAlive:   c.liveness.Alive("read-queue"),
		WriteQueueWorkerAlive:  c.liveness.Alive("write-queue"),
		MainQueueWorkerAlive:   c.liveness.Alive("main-queue"),
		ReturnQueueWorkerAlive: c.liveness.Alive("return-queue"),
		ReadPoolAlive:          c.liveness.Alive("read-pool"),
		WritePoolAlive:         c.liveness.Alive("write-pool"),

		CurrentCacheSize: c.inflight.size(),
		MainQueueSize:    c.mainQueue.Len(),
		ReturnQueueSize:  c.returnQueue.Len(),
		ReadQueueSize:    c.readQueue.Len(),
		WriteQueueSize:   c.writeQueue.Len(),

		MaxCacheElementsHardLimit: int(c.mutable.maxCacheElementsHardLimit.Load()),
		TakenAtMillis:             now,
	}
	st.EverythingAlive = (ctl == ControlRunning || ctl == ControlFlushing) && c.liveness.AllAlive()
	if c.startedAtMillis > 0 {
		st.UptimeMillis = now - c.startedAtMillis
	}
	if c.broker != nil {
		st.EventsDropped = c.broker.Dropped()
	}

	cs := &c.mon.counters
	st.Counters = CounterSnapshot{
		StorageReadInitialAttempts:  cs.StorageReadInitialAttempts.Load(),
		StorageReadInitialSuccesses: cs.StorageReadInitialSuccesses.Load(),
		StorageReadInitialFailures:  cs.StorageReadInitialFailures.Load(),

		StorageReadRefreshAttempts:  cs.StorageReadRefreshAttempts.Load(),
		StorageReadRefreshSuccesses: cs.StorageReadRefreshSuccesses.Load(),
		StorageReadRefreshFailures:  cs.StorageReadRefreshFailures.Load(),
		StorageReadRefreshTooLate:   cs.StorageReadRefreshTooLate.Load(),
		StorageReadDoNothing:        cs.StorageReadDoNothing.Load(),

		StorageWriteAttempts:  cs.StorageWriteAttempts.Load(),
		StorageWriteSuccesses: cs.StorageWriteSuccesses.Load(),
		StorageWriteFailures:  cs.StorageWriteFailures.Load(),

		CacheReadAttempts:   cs.CacheReadAttempts.Load(),
		CacheReadTimeouts:   cs.CacheReadTimeouts.Load(),
		CacheReadInterrupts: cs.CacheReadInterrupts.Load(),
		CacheReadErrors:     cs.CacheReadErrors.Load(),

		CacheWriteAttempts:       cs.CacheWriteAttempts.Load(),
		CacheWriteSuccesses:      cs.CacheWriteSuccesses.Load(),
		CacheWriteErrors:         cs.CacheWriteErrors.Load(),
		CacheWriteTooManyUpdates: cs.CacheWriteTooManyUpdates.Load(),

		CheckCacheNullKey:               cs.CheckCacheNullKey.Load(),
		CheckCacheFullExceptions:        cs.CheckCacheFullExceptions.Load(),
		CheckCacheRemovedRetryExhausted: cs.CheckCacheRemovedRetryExhausted.Load(),

		ReturnQueueExpiredFromCacheCount:             cs.ReturnQueueExpiredFromCacheCount.Load(),
		ReturnQueueRemovedFromCacheCount:             cs.ReturnQueueRemovedFromCacheCount.Load(),
		ReturnQueueRetainedCount:                     cs.ReturnQueueRetainedCount.Load(),
		ReturnQueueRequeuedDueToPendingWriteCount:    cs.ReturnQueueRequeuedDueToPendingWriteCount.Load(),
		ReturnQueueItemNotRetainedDueToMainQueueSize: cs.ReturnQueueItemNotRetainedDueToMainQueueSize.Load(),
		ReturnQueueNegativeTimeSinceLastAccessError:  cs.ReturnQueueNegativeTimeSinceLastAccessError.Load(),

		ExternalDataLossCount: cs.ExternalDataLossCount.Load(),
		ExternalErrorCount:    cs.ExternalErrorCount.Load(),
		ExternalWarnCount:     cs.ExternalWarnCount.Load(),

		FullCycleRetriesSuppressedCount: cs.FullCycleRetriesSuppressedCount.Load(),
	}

	for i := range st.FullCycleBuckets {
		st.FullCycleBuckets[i] = c.mon.fullCycleBuckets[i].Load()
		st.TimeSinceAccessBuckets[i] = c.mon.timeSinceBuckets[i].Load()
	}

	st.LastMessageTimestamps = make(map[string]int64, numSeverities)
	st.LastLoggedMessages = make(map[string]string, numSeverities)
	for sev := Severity(0); sev < numSeverities; sev++ {
		ts := c.mon.lastMessageTimestamps[sev].Load()
		if ts > 0 {
			st.LastMessageTimestamps[sev.String()] = ts
		}
		if text := c.mon.lastLogged(sev); text != "" {
			st.LastLoggedMessages[sev.String()] = text
		}
	}

	pickLatest := func(sevs ...Severity) (int64, string) {
		var ts int64
		var text string
		for _, sev := range sevs {
			if t := c.mon.lastMessageTimestamps[sev].Load(); t > ts {
				ts = t
				text = c.mon.lastLogged(sev)
			}
		}
		return ts, text
	}
	st.LastWarnTimestamp, st.LastWarnText = pickLatest(SeverityWarn, SeverityExternalWarn)
	st.LastErrorTimestamp, st.LastErrorText = pickLatest(SeverityError, SeverityExternalError, SeverityExternalDataLoss)
	st.LastFatalTimestamp, st.LastFatalText = pickLatest(SeverityFatal)

	return st
}
