package writebehind

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
)

// mutableOptions are the runtime-changeable settings, each an independent
// atomic. Changes take effect at the next relevant scheduling decision;
// there is no cross-field atomicity.
type mutableOptions struct {
	mainQueueCacheTimeMillis    atomic.Int64
	mainQueueCacheTimeMinMillis atomic.Int64
	returnQueueCacheTimeMinMs   atomic.Int64
	untouchedExpirationMillis   atomic.Int64
	maxUpdatesToCollect         atomic.Int64
	mainQueueMaxTargetSize      atomic.Int64
	maxCacheElementsHardLimit   atomic.Int64
	maxSleepMillis              atomic.Int64
	throttleIntervalMillis      atomic.Int64
	throttleMaxPerInterval      atomic.Int64
	returnQueueMaxRequeueCount  atomic.Int64
}

type readRequest[V, U, W any] struct {
	e       *entry[V, U, W]
	refresh bool
}

type writeRequest[V, U, W any] struct {
	e        *entry[V, U, W]
	payload  W
	attempts int
}

// Cache is a write-behind, resync-in-background cache over a slow,
// fallible backing store. Entries ride a four-queue pipeline: an initial
// read loads them, the main queue periodically splits accumulated updates
// into storage writes and schedules refresh reads, and the return queue
// decides retention or expiry.
type Cache[V, U, W any] struct {
	opts    Options
	mutable mutableOptions

	store   Store[W]
	adapter Adapter[V, U, W]
	clock   Clock
	logger  zerolog.Logger

	mon      *monitor
	throttle *throttler
	liveness *metrics.LivenessRegistry
	broker   *events.Broker

	inflight *inflightMap[V, U, W]

	readQueue   *fifo[*readRequest[V, U, W]]
	writeQueue  *fifo[*writeRequest[V, U, W]]
	mainQueue   *fifo[*entry[V, U, W]]
	returnQueue *fifo[*entry[V, U, W]]

	readPool  *pool
	writePool *pool

	ctlMu   sync.Mutex
	control atomic.Value // ControlState

	drainDeadline atomic.Int64 // virtual ms; 0 = none

	stopCh     chan struct{}
	storageCtx context.Context
	cancelIO   context.CancelFunc
	workersWg  sync.WaitGroup

	startedAtMillis int64

	statusMu       sync.Mutex
	cachedStatus   *Status
	cachedStatusAt int64
}

// New creates a cache from validated options, a backing store and the
// host's value adapter. The cache does no work until Start.
func New[V, U, W any](opts Options, store Store[W], adapter Adapter[V, U, W]) (*Cache[V, U, W], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if store == nil || adapter == nil {
		return nil, fmt.Errorf("store and adapter are required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = WallClock{}
	}

	c := &Cache[V, U, W]{
		opts:        opts,
		store:       store,
		adapter:     adapter,
		clock:       clock,
		logger:      log.WithCache(opts.CacheName),
		liveness:    metrics.NewLivenessRegistry(),
		inflight:    newInflightMap[V, U, W](),
		readQueue:   newFIFO[*readRequest[V, U, W]](),
		writeQueue:  newFIFO[*writeRequest[V, U, W]](),
		mainQueue:   newFIFO[*entry[V, U, W]](),
		returnQueue: newFIFO[*entry[V, U, W]](),
		stopCh:      make(chan struct{}),
	}
	c.control.Store(ControlNotStarted)

	c.mutable.mainQueueCacheTimeMillis.Store(opts.MainQueueCacheTime.Milliseconds())
	c.mutable.mainQueueCacheTimeMinMillis.Store(opts.MainQueueCacheTimeMin.Milliseconds())
	c.mutable.returnQueueCacheTimeMinMs.Store(opts.ReturnQueueCacheTimeMin.Milliseconds())
	c.mutable.untouchedExpirationMillis.Store(opts.UntouchedItemCacheExpirationDelay.Milliseconds())
	c.mutable.maxUpdatesToCollect.Store(int64(opts.MaxUpdatesToCollect))
	c.mutable.mainQueueMaxTargetSize.Store(int64(opts.MainQueueMaxTargetSize))
	c.mutable.maxCacheElementsHardLimit.Store(int64(opts.MaxCacheElementsHardLimit))
	c.mutable.maxSleepMillis.Store(opts.MaxSleepTime.Milliseconds())
	c.mutable.throttleIntervalMillis.Store(opts.LogThrottleTimeInterval.Milliseconds())
	c.mutable.throttleMaxPerInterval.Store(int64(opts.LogThrottleMaxMessagesOfTypePerTimeInterval))
	c.mutable.returnQueueMaxRequeueCount.Store(int64(opts.ReturnQueueMaxRequeueCount))

	c.mon = newMonitor(&opts, clock)
	c.throttle = newThrottler(c.logger, c.mon, clock,
		c.mutable.throttleIntervalMillis.Load,
		c.mutable.throttleMaxPerInterval.Load)

	if opts.EventNotificationEnabled {
		c.broker = events.NewBroker()
	}

	c.storageCtx, c.cancelIO = context.WithCancel(context.Background())
	return c, nil
}

// Name returns the configured cache name
func (c *Cache[V, U, W]) Name() string {
	return c.opts.CacheName
}

// Events returns the pipeline event broker, or nil when event
// notification is disabled
func (c *Cache[V, U, W]) Events() *events.Broker {
	return c.broker
}

// Liveness returns the component liveness registry, for serving health
// endpoints
func (c *Cache[V, U, W]) Liveness() *metrics.LivenessRegistry {
	return c.liveness
}

// ControlState returns the current lifecycle state
func (c *Cache[V, U, W]) ControlState() ControlState {
	return c.control.Load().(ControlState)
}

// Start transitions the cache from NOT_STARTED to RUNNING and launches
// the pipeline workers. It fails in every other state.
func (c *Cache[V, U, W]) Start() error {
	c.ctlMu.Lock()
	defer c.ctlMu.Unlock()

	switch st := c.ControlState(); st {
	case ControlNotStarted:
	case ControlShutdownInProgress, ControlShutdownCompleted:
		return ErrShutdown
	default:
		return fmt.Errorf("%w: cannot start in state %s", ErrNotUsable, st)
	}

	c.startedAtMillis = c.clock.Now()

	c.readPool = newPool("read-pool", c.opts.ReadPoolMinSize, c.opts.ReadPoolMaxSize, c.liveness)
	c.writePool = newPool("write-pool", c.opts.WritePoolMinSize, c.opts.WritePoolMaxSize, c.liveness)

	c.spawnWorker("read-queue", c.runReadQueue)
	c.spawnWorker("write-queue", c.runWriteQueue)
	c.spawnWorker("main-queue", c.runMainQueue)
	c.spawnWorker("return-queue", c.runReturnQueue)

	c.control.Store(ControlRunning)
	c.throttle.logMessage(MsgCacheStarted, nil, nil)
	c.publish(events.EventCacheStarted, "")
	return nil
}

func (c *Cache[V, U, W]) spawnWorker(name string, run func()) {
	c.liveness.Report(name, true, "")
	c.workersWg.Add(1)
	go func() {
		defer c.workersWg.Done()
		defer c.liveness.Report(name, false, "stopped")
		run()
	}()
}

// maxSleep returns the bound on one uninterrupted internal wait
func (c *Cache[V, U, W]) maxSleep() time.Duration {
	return time.Duration(c.mutable.maxSleepMillis.Load()) * time.Millisecond
}

// accelerated reports whether workers should drain without honoring
// residency deadlines
func (c *Cache[V, U, W]) accelerated() bool {
	st := c.ControlState()
	return st == ControlFlushing || st == ControlShutdownInProgress
}

func (c *Cache[V, U, W]) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Cache[V, U, W]) wakeWorkers() {
	c.readQueue.Wake()
	c.writeQueue.Wake()
	c.mainQueue.Wake()
	c.returnQueue.Wake()
}

func (c *Cache[V, U, W]) publish(t events.EventType, key string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.Event{Type: t, Cache: c.opts.CacheName, Key: key})
}

// checkUsable gates client operations on the control state
func (c *Cache[V, U, W]) checkUsable() error {
	switch st := c.ControlState(); st {
	case ControlRunning:
		return nil
	case ControlNotStarted:
		return ErrNotStarted
	case ControlShutdownInProgress, ControlShutdownCompleted:
		return ErrShutdown
	default:
		return fmt.Errorf("%w: control state %s", ErrNotUsable, st)
	}
}

func (c *Cache[V, U, W]) checkKey(key string) error {
	if key == "" {
		c.mon.counters.CheckCacheNullKey.Add(1)
		return ErrNilKey
	}
	return nil
}

// acquireEntry returns the resident entry for key, allocating one (and
// scheduling its initial read) when absent
func (c *Cache[V, U, W]) acquireEntry(key string) (*entry[V, U, W], error) {
	if dl := c.drainDeadline.Load(); dl > 0 {
		if dl-c.clock.Now() < c.mutable.mainQueueCacheTimeMinMillis.Load() {
			return nil, fmt.Errorf("%w: insufficient residency budget before drain deadline", ErrNotUsable)
		}
	}

	limit := int(c.mutable.maxCacheElementsHardLimit.Load())
	now := c.clock.Now()
	e, created, err := c.inflight.lookupOrCreate(key, limit, func() *entry[V, U, W] {
		ne := newEntry[V, U, W](key, now)
		ne.inMainQueueUntil.Store(now + c.mutable.mainQueueCacheTimeMillis.Load())
		return ne
	})
	if err != nil {
		c.mon.counters.CheckCacheFullExceptions.Add(1)
		return nil, fmt.Errorf("%w: %s", err, key)
	}
	if created {
		c.readQueue.Push(&readRequest[V, U, W]{e: e})
		c.mainQueue.Push(e)
		metrics.CacheElements.WithLabelValues(c.opts.CacheName).Set(float64(c.inflight.size()))
	}
	return e, nil
}

// Preload ensures an entry is allocated and its read is in progress,
// returning immediately
func (c *Cache[V, U, W]) Preload(key string) error {
	if err := c.checkUsable(); err != nil {
		return err
	}
	if err := c.checkKey(key); err != nil {
		return err
	}
	_, err := c.acquireEntry(key)
	return err
}

// PreloadAll preloads every key, stopping at the first admission error
func (c *Cache[V, U, W]) PreloadAll(keys []string) error {
	for _, key := range keys {
		if err := c.Preload(key); err != nil {
			return err
		}
	}
	return nil
}

// ReadIfCached returns the value iff the entry is loaded. It never
// blocks: a missing or still-loading entry yields ok=false.
func (c *Cache[V, U, W]) ReadIfCached(key string) (V, bool, error) {
	var zero V
	if err := c.checkUsable(); err != nil {
		return zero, false, err
	}
	if err := c.checkKey(key); err != nil {
		return zero, false, err
	}
	c.mon.counters.CacheReadAttempts.Add(1)

	e := c.inflight.get(key)
	if e == nil {
		c.mon.cacheReadOutcome("miss")
		return zero, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateReadFailedFinal:
		c.mon.counters.CacheReadErrors.Add(1)
		c.mon.cacheReadOutcome("failed")
		return zero, false, fmt.Errorf("%w: %s: %v", ErrFailedToLoad, key, e.lastReadErr)
	case StateLoaded, StateResyncPending:
		if e.resyncFailedFinal && !c.opts.AllowDataReadingAfterResyncFailedFinal {
			c.mon.counters.CacheReadErrors.Add(1)
			c.mon.cacheReadOutcome("failed")
			return zero, false, fmt.Errorf("%w: %s: resync failed", ErrFailedToLoad, key)
		}
		e.lastAccess.Store(c.clock.Now())
		c.mon.cacheReadOutcome("hit")
		return e.value, true, nil
	default:
		c.mon.cacheReadOutcome("miss")
		return zero, false, nil
	}
}

// ReadIfCachedOrErr is ReadIfCached raising ErrNotCached instead of
// returning empty
func (c *Cache[V, U, W]) ReadIfCachedOrErr(key string) (V, error) {
	v, ok, err := c.ReadIfCached(key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrNotCached, key)
	}
	return v, nil
}

// ReadFor waits up to timeout for the entry to load. ok=false with a nil
// error means the wait timed out.
func (c *Cache[V, U, W]) ReadFor(key string, timeout time.Duration) (V, bool, error) {
	return c.ReadUntil(key, c.clock.Now()+timeout.Milliseconds())
}

// ReadForOrErr is ReadFor raising ErrTimeout instead of returning empty
func (c *Cache[V, U, W]) ReadForOrErr(key string, timeout time.Duration) (V, error) {
	v, ok, err := c.ReadFor(key, timeout)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrTimeout, key)
	}
	return v, nil
}

// ReadUntil is ReadFor against an absolute virtual-time deadline
func (c *Cache[V, U, W]) ReadUntil(key string, deadlineMillis int64) (V, bool, error) {
	var zero V
	if err := c.checkUsable(); err != nil {
		return zero, false, err
	}
	if err := c.checkKey(key); err != nil {
		return zero, false, err
	}
	c.mon.counters.CacheReadAttempts.Add(1)

	removedSeen := 0
	for {
		e, err := c.acquireEntry(key)
		if err != nil {
			c.mon.counters.CacheReadErrors.Add(1)
			c.mon.cacheReadOutcome("failed")
			return zero, false, err
		}

		v, ok, err, removed := c.awaitLoaded(e, deadlineMillis)
		if !removed {
			switch {
			case err != nil:
				c.mon.counters.CacheReadErrors.Add(1)
				c.mon.cacheReadOutcome("failed")
			case ok:
				c.mon.cacheReadOutcome("hit")
			default:
				c.mon.counters.CacheReadTimeouts.Add(1)
				c.mon.cacheReadOutcome("timeout")
			}
			return v, ok, err
		}

		removedSeen++
		if removedSeen > c.opts.MaxCacheRemovedRetries {
			c.mon.counters.CheckCacheRemovedRetryExhausted.Add(1)
			c.mon.cacheReadOutcome("failed")
			return zero, false, fmt.Errorf("%w: %s", ErrRemovedRetryExhausted, key)
		}
	}
}

// ReadUntilOrErr is ReadUntil raising ErrTimeout instead of returning
// empty
func (c *Cache[V, U, W]) ReadUntilOrErr(key string, deadlineMillis int64) (V, error) {
	v, ok, err := c.ReadUntil(key, deadlineMillis)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrTimeout, key)
	}
	return v, nil
}

// awaitLoaded blocks until e is readable, terminally failed, removed, or
// the deadline passes. removed=true asks the caller to retry with a
// fresh entry.
func (c *Cache[V, U, W]) awaitLoaded(e *entry[V, U, W], deadlineMillis int64) (v V, ok bool, err error, removed bool) {
	var zero V
	for {
		e.mu.Lock()
		switch e.state {
		case StateRemoved:
			e.mu.Unlock()
			return zero, false, nil, true
		case StateReadFailedFinal:
			cause := e.lastReadErr
			e.mu.Unlock()
			return zero, false, fmt.Errorf("%w: %s: %v", ErrFailedToLoad, e.key, cause), false
		case StateLoaded, StateResyncPending:
			if e.resyncFailedFinal && !c.opts.AllowDataReadingAfterResyncFailedFinal {
				e.mu.Unlock()
				return zero, false, fmt.Errorf("%w: %s: resync failed", ErrFailedToLoad, e.key), false
			}
			v = e.value
			e.lastAccess.Store(c.clock.Now())
			e.mu.Unlock()
			return v, true, nil, false
		}
		ch := e.waitChanLocked()
		e.mu.Unlock()

		now := c.clock.Now()
		if now >= deadlineMillis {
			return zero, false, nil, false
		}
		wait := time.Duration(deadlineMillis-now) * time.Millisecond
		if ms := c.maxSleep(); wait > ms {
			wait = ms
		}
		timer := time.NewTimer(wait)
		select {
		case <-ch:
			timer.Stop()
		case <-timer.C:
		case <-c.stopCh:
			timer.Stop()
			c.mon.counters.CacheReadInterrupts.Add(1)
			return zero, false, ErrShutdown, false
		}
	}
}

// WriteIfCached applies the update iff the entry is loaded. applied=false
// with a nil error means the key is not resident.
func (c *Cache[V, U, W]) WriteIfCached(key string, update U) (bool, error) {
	if err := c.checkUsable(); err != nil {
		return false, err
	}
	if err := c.checkKey(key); err != nil {
		return false, err
	}
	c.mon.counters.CacheWriteAttempts.Add(1)

	e := c.inflight.get(key)
	if e == nil {
		c.mon.cacheWriteOutcome("miss")
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateRemoved:
		c.mon.cacheWriteOutcome("miss")
		return false, nil
	case StateNotYetRead:
		c.mon.counters.CacheWriteErrors.Add(1)
		c.mon.cacheWriteOutcome("failed")
		return false, fmt.Errorf("%w: %s", ErrNotYetLoaded, key)
	case StateReadFailedFinal:
		c.mon.counters.CacheWriteErrors.Add(1)
		c.mon.cacheWriteOutcome("failed")
		return false, fmt.Errorf("%w: %s: %v", ErrFailedToLoad, key, e.lastReadErr)
	}

	if e.resyncFailedFinal && !c.opts.AllowDataWritingAfterResyncFailedFinal {
		c.mon.counters.CacheWriteErrors.Add(1)
		c.mon.cacheWriteOutcome("failed")
		return false, fmt.Errorf("%w: %s: resync failed", ErrFailedToLoad, key)
	}

	collect := !e.updatesDisabled
	if collect && !c.opts.AllowUpdatesCollectionForMultipleFullCycles && e.fullCycleFailureCount > 1 {
		collect = false
	}
	if collect && int64(len(e.pending)) >= c.mutable.maxUpdatesToCollect.Load() {
		c.mon.counters.CacheWriteTooManyUpdates.Add(1)
		c.mon.cacheWriteOutcome("too_many_updates")
		c.throttle.logMessage(MsgTooManyPendingUpdates, nil, map[string]string{"key": key})
		return false, fmt.Errorf("%w: %s", ErrTooManyUpdates, key)
	}

	e.value = c.adapter.ApplyUpdate(e.value, update)
	if collect {
		e.pending = append(e.pending, update)
	}
	e.unwritten = true
	e.lastAccess.Store(c.clock.Now())
	c.mon.counters.CacheWriteSuccesses.Add(1)
	c.mon.cacheWriteOutcome("success")
	return true, nil
}

// WriteIfCachedOrErr is WriteIfCached raising ErrNotCached when the key
// is not resident
func (c *Cache[V, U, W]) WriteIfCachedOrErr(key string, update U) error {
	applied, err := c.WriteIfCached(key, update)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: %s", ErrNotCached, key)
	}
	return nil
}

// WriteIfCachedAndRead applies the update and returns the post-update
// cached view
func (c *Cache[V, U, W]) WriteIfCachedAndRead(key string, update U) (V, bool, error) {
	var zero V
	applied, err := c.WriteIfCached(key, update)
	if err != nil || !applied {
		return zero, false, err
	}
	return c.ReadIfCached(key)
}

// WriteIfCachedAndReadOrErr is WriteIfCachedAndRead raising ErrNotCached
// when the key is not resident
func (c *Cache[V, U, W]) WriteIfCachedAndReadOrErr(key string, update U) (V, error) {
	v, ok, err := c.WriteIfCachedAndRead(key, update)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrNotCached, key)
	}
	return v, nil
}

// FlushFor drains the cache to storage within timeout and returns to
// RUNNING with an empty cache. Client operations fail while flushing.
func (c *Cache[V, U, W]) FlushFor(timeout time.Duration) (bool, error) {
	return c.FlushUntil(c.clock.Now() + timeout.Milliseconds())
}

// FlushUntil is FlushFor against an absolute virtual-time deadline
func (c *Cache[V, U, W]) FlushUntil(deadlineMillis int64) (bool, error) {
	c.ctlMu.Lock()
	if st := c.ControlState(); st != ControlRunning {
		c.ctlMu.Unlock()
		switch st {
		case ControlNotStarted:
			return false, ErrNotStarted
		case ControlShutdownInProgress, ControlShutdownCompleted:
			return false, ErrShutdown
		default:
			return false, fmt.Errorf("%w: flush already in progress", ErrNotUsable)
		}
	}
	c.control.Store(ControlFlushing)
	c.ctlMu.Unlock()

	c.drainDeadline.Store(deadlineMillis)
	c.wakeWorkers()
	drained := c.awaitDrain(deadlineMillis)
	c.drainDeadline.Store(0)

	c.ctlMu.Lock()
	c.control.Store(ControlRunning)
	c.ctlMu.Unlock()

	if drained {
		c.throttle.logMessage(MsgCacheFlushed, nil, nil)
		c.publish(events.EventCacheFlushed, "")
	} else {
		c.throttle.logMessage(MsgCacheFlushTimeout, nil, nil)
	}
	return drained, nil
}

// ShutdownFor drains all queues within timeout, stops every worker and
// leaves the cache in SHUTDOWN_COMPLETED. The returned bool reports
// whether the drain completed fully.
func (c *Cache[V, U, W]) ShutdownFor(timeout time.Duration) (bool, error) {
	c.ctlMu.Lock()
	st := c.ControlState()
	if st == ControlShutdownInProgress || st == ControlShutdownCompleted {
		c.ctlMu.Unlock()
		return false, ErrShutdown
	}
	wasRunning := st == ControlRunning || st == ControlFlushing
	c.control.Store(ControlShutdownInProgress)
	c.ctlMu.Unlock()

	deadlineMillis := c.clock.Now() + timeout.Milliseconds()
	c.drainDeadline.Store(deadlineMillis)

	drained := true
	if wasRunning {
		c.wakeWorkers()
		drained = c.awaitDrain(deadlineMillis)

		close(c.stopCh)
		c.cancelIO()
		c.wakeWorkers()

		poolDeadline := time.Now().Add(c.maxSleep())
		c.readPool.Stop(poolDeadline)
		c.writePool.Stop(poolDeadline)
		c.workersWg.Wait()
	}

	c.ctlMu.Lock()
	c.control.Store(ControlShutdownCompleted)
	c.ctlMu.Unlock()

	if drained {
		c.throttle.logMessage(MsgCacheShutdownCompleted, nil, nil)
	} else {
		c.throttle.logMessage(MsgCacheShutdownTimeout, nil,
			map[string]string{"remaining": fmt.Sprintf("%d", c.inflight.size())})
	}
	c.publish(events.EventCacheShutdown, "")
	if c.broker != nil {
		c.broker.Close()
	}
	return drained && c.inflight.size() == 0, nil
}

// awaitDrain polls until the inflight map and write queue empty out or
// the virtual deadline passes
func (c *Cache[V, U, W]) awaitDrain(deadlineMillis int64) bool {
	for {
		if c.inflight.size() == 0 && c.writeQueue.Len() == 0 {
			return true
		}
		if c.clock.Now() >= deadlineMillis {
			return false
		}
		wait := 10 * time.Millisecond
		if ms := c.maxSleep(); wait > ms {
			wait = ms
		}
		time.Sleep(wait)
	}
}

// LogNonStandardMessage emits a caller-classified message through the
// throttled logger
func (c *Cache[V, U, W]) LogNonStandardMessage(sev Severity, classifier string, cause error, fields map[string]string) {
	c.throttle.log(MsgNonStandard, sev, classifier, cause, fields)
}

// Runtime option setters; each affects the next scheduling decision.

func (c *Cache[V, U, W]) SetMaxUpdatesToCollect(n int) {
	c.mutable.maxUpdatesToCollect.Store(int64(n))
}

func (c *Cache[V, U, W]) SetMainQueueCacheTime(d time.Duration) {
	c.mutable.mainQueueCacheTimeMillis.Store(d.Milliseconds())
}

func (c *Cache[V, U, W]) SetUntouchedItemCacheExpirationDelay(d time.Duration) {
	c.mutable.untouchedExpirationMillis.Store(d.Milliseconds())
}

func (c *Cache[V, U, W]) SetMainQueueMaxTargetSize(n int) {
	c.mutable.mainQueueMaxTargetSize.Store(int64(n))
}

func (c *Cache[V, U, W]) SetMaxSleepTime(d time.Duration) {
	c.mutable.maxSleepMillis.Store(d.Milliseconds())
}

func (c *Cache[V, U, W]) SetLogThrottleTimeInterval(d time.Duration) {
	c.mutable.throttleIntervalMillis.Store(d.Milliseconds())
}

func (c *Cache[V, U, W]) SetLogThrottleMaxMessagesOfTypePerTimeInterval(n int) {
	c.mutable.throttleMaxPerInterval.Store(int64(n))
}

// removeEntryLocked transitions e to REMOVED_FROM_CACHE and wakes its
// waiters. The caller holds e.mu and must call finishRemoval afterwards.
func (c *Cache[V, U, W]) removeEntryLocked(e *entry[V, U, W]) {
	e.state = StateRemoved
	e.broadcastLocked()
}

// finishRemoval drops e from the inflight map and updates gauges. Called
// without holding e.mu.
func (c *Cache[V, U, W]) finishRemoval(e *entry[V, U, W], eventType events.EventType) {
	c.inflight.remove(e)
	metrics.CacheElements.WithLabelValues(c.opts.CacheName).Set(float64(c.inflight.size()))
	c.publish(eventType, e.key)
}
