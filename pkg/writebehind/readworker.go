package writebehind

import (
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/metrics"
)

// mergeDecision is what to do with an arrived refresh read
type mergeDecision int

const (
	decisionMerge mergeDecision = iota
	decisionDrop
	decisionRemove
	decisionNothing
)

// runReadQueue is the read-queue worker loop. It dequeues initial and
// refresh reads, optionally batches them within the configured window,
// and executes each inline or on the read pool.
func (c *Cache[V, U, W]) runReadQueue() {
	for {
		req, ok := c.readQueue.Poll(c.maxSleep(), c.stopCh)
		metrics.QueueSize.WithLabelValues(c.opts.CacheName, "read").Set(float64(c.readQueue.Len()))
		if !ok {
			if c.stopping() {
				return
			}
			continue
		}

		batch := []*readRequest[V, U, W]{req}
		if d := c.opts.ReadQueueBatchingDelay; d > 0 {
			deadline := time.Now().Add(d)
			for {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					break
				}
				more, got := c.readQueue.Poll(remaining, c.stopCh)
				if !got {
					break
				}
				batch = append(batch, more)
			}
			if c.opts.ReadQueueBatchingHook != nil {
				c.opts.ReadQueueBatchingHook(len(batch))
			}
		}

		for _, r := range batch {
			r := r
			c.readPool.Submit(func() { c.executeRead(r) })
		}
	}
}

func (c *Cache[V, U, W]) executeRead(r *readRequest[V, U, W]) {
	c.mon.storageReadAttempt(r.refresh)

	timer := metrics.NewTimer()
	payload, err := c.store.Read(c.storageCtx, r.e.key)
	timer.ObserveDurationVec(metrics.StorageReadDuration, c.opts.CacheName)

	if err != nil {
		c.readFailed(r, err)
		return
	}
	c.mon.storageReadSuccess(r.refresh)
	c.readSucceeded(r, payload)
}

func (c *Cache[V, U, W]) readSucceeded(r *readRequest[V, U, W], payload W) {
	e := r.e
	e.mu.Lock()
	if e.state == StateRemoved {
		e.mu.Unlock()
		if r.refresh {
			c.mon.counters.StorageReadRefreshTooLate.Add(1)
		}
		return
	}

	if !r.refresh {
		v, cerr := c.adapter.ValueFromStorage(e.key, payload)
		if cerr != nil {
			e.mu.Unlock()
			c.readFailed(r, cerr)
			return
		}
		e.value = v
		e.state = StateLoaded
		e.readFailureCount = 0
		e.pending = nil
		e.broadcastLocked()
		e.mu.Unlock()
		c.publish(events.EventEntryLoaded, e.key)
		return
	}

	switch c.resyncDecisionLocked(e) {
	case decisionMerge:
		v, cerr := c.adapter.MergeWithResync(e.key, payload, e.value, e.pending)
		if cerr != nil {
			e.mu.Unlock()
			c.readFailed(r, cerr)
			return
		}
		e.value = v
		e.pending = nil
		e.readPending = false
		e.readFailureCount = 0
		if e.state == StateResyncPending {
			e.state = StateLoaded
		}
		e.broadcastLocked()
		e.mu.Unlock()
		c.publish(events.EventEntryResynced, e.key)

	case decisionDrop:
		e.readPending = false
		e.mu.Unlock()
		c.mon.counters.StorageReadRefreshTooLate.Add(1)
		c.throttle.logMessage(MsgStorageResyncTooLate, nil, map[string]string{"key": e.key})

	case decisionRemove:
		c.removeEntryLocked(e)
		e.mu.Unlock()
		c.finishRemoval(e, events.EventEntryRemoved)
		c.throttle.logMessage(MsgEntryRemovedOnError, nil, map[string]string{"key": e.key})

	case decisionNothing:
		// Deliberately leaves even the read-pending flag untouched
		e.mu.Unlock()
		c.mon.counters.StorageReadDoNothing.Add(1)
		c.throttle.logMessage(MsgStorageResyncDoNothing, nil, map[string]string{"key": e.key})
	}
}

// resyncDecisionLocked classifies an arrived refresh read. Callers hold
// e.mu.
func (c *Cache[V, U, W]) resyncDecisionLocked(e *entry[V, U, W]) mergeDecision {
	if e.state == StateResyncPending {
		return decisionMerge
	}
	// The entry advanced past its resync point before the read arrived
	if c.opts.AcceptOutOfOrderReads {
		return decisionMerge
	}
	switch c.opts.ResyncTooLateAction {
	case TooLateMerge:
		return decisionMerge
	case TooLateRemove:
		return decisionRemove
	case TooLateNothing:
		return decisionNothing
	default:
		return decisionDrop
	}
}

func (c *Cache[V, U, W]) readFailed(r *readRequest[V, U, W], cause error) {
	c.mon.storageReadFailure(r.refresh)

	e := r.e
	e.mu.Lock()
	if e.state == StateRemoved {
		e.mu.Unlock()
		return
	}
	e.readFailureCount++
	e.cycleHadFailure = true

	if !e.retriesSuppressed && e.readFailureCount < c.opts.ReadFailureMaxRetryCount {
		e.mu.Unlock()
		c.throttle.logMessage(MsgStorageReadFailure, cause, map[string]string{"key": e.key})
		c.readQueue.Push(r)
		return
	}

	if !r.refresh {
		e.lastReadErr = cause
		switch c.opts.InitialReadFailedFinalAction {
		case ReadFailedKeep:
			e.state = StateReadFailedFinal
			e.broadcastLocked()
			e.mu.Unlock()
		default:
			c.removeEntryLocked(e)
			e.mu.Unlock()
			c.finishRemoval(e, events.EventEntryRemoved)
		}
		c.throttle.logMessage(MsgStorageReadFailureFinal, cause, map[string]string{"key": e.key})
		return
	}

	switch c.opts.ResyncFailedFinalAction {
	case ResyncFailedRemove:
		c.removeEntryLocked(e)
		e.mu.Unlock()
		c.finishRemoval(e, events.EventEntryRemoved)
	case ResyncFailedStopCollecting:
		e.resyncFailedFinal = true
		e.updatesDisabled = true
		e.readPending = false
		if e.state == StateResyncPending {
			e.state = StateLoaded
		}
		e.broadcastLocked()
		e.mu.Unlock()
	default: // keep collecting
		e.resyncFailedFinal = true
		e.readPending = false
		if e.state == StateResyncPending {
			e.state = StateLoaded
		}
		e.broadcastLocked()
		e.mu.Unlock()
	}
	c.throttle.logMessage(MsgStorageResyncFailureFinal, cause, map[string]string{"key": e.key})
}
