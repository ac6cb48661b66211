package writebehind

import (
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/metrics"
)

// accelBackoffMillis is the re-queue delay for write-pending entries
// while the cache is draining
const accelBackoffMillis = 10

// runReturnQueue is the post-write stage of the pipeline. Entries whose
// return-queue residency elapsed are retained for another full cycle,
// re-queued while a write is still pending, or expired out of the cache.
func (c *Cache[V, U, W]) runReturnQueue() {
	for {
		if c.stopping() {
			return
		}
		metrics.QueueSize.WithLabelValues(c.opts.CacheName, "return").Set(float64(c.returnQueue.Len()))

		e, ok := c.returnQueue.Peek()
		if !ok {
			c.returnQueue.WaitWake(c.maxSleep(), c.stopCh)
			continue
		}

		now := c.clock.Now()
		due := e.inReturnQueueUntil.Load()
		if c.accelerated() && due > now+accelBackoffMillis {
			// Draining cuts residency but keeps short write-pending backoffs
			due = now
		}
		if now < due {
			wait := time.Duration(due-now) * time.Millisecond
			if ms := c.maxSleep(); wait > ms {
				wait = ms
			}
			c.returnQueue.WaitWake(wait, c.stopCh)
			continue
		}

		c.returnQueue.TryPop()
		c.processReturnEntry(e, c.clock.Now())
	}
}

func (c *Cache[V, U, W]) processReturnEntry(e *entry[V, U, W], now int64) {
	e.mu.Lock()
	if e.state == StateRemoved {
		e.mu.Unlock()
		return
	}

	accel := c.accelerated()

	timeSinceAccess := now - e.lastAccess.Load()
	if timeSinceAccess < 0 {
		c.mon.counters.ReturnQueueNegativeTimeSinceLastAccessError.Add(1)
		c.throttle.logMessage(MsgNegativeTimeSinceAccess, nil, map[string]string{"key": e.key})
		timeSinceAccess = 0
	}
	c.mon.sampleEntry(e.fullCycleCount, timeSinceAccess)

	// A pending write buys the entry more return-queue time, within the
	// requeue budget. Under flush or shutdown the budget is waived so the
	// drain only completes once writes have landed.
	if e.writesPending > 0 {
		requeue := accel || e.returnRequeues < int(c.mutable.returnQueueMaxRequeueCount.Load())
		if requeue {
			if !accel {
				e.returnRequeues++
			}
			c.mon.counters.ReturnQueueRequeuedDueToPendingWriteCount.Add(1)
			delay := c.mutable.returnQueueCacheTimeMinMs.Load()
			if accel {
				delay = accelBackoffMillis
			}
			e.inReturnQueueUntil.Store(now + delay)
			e.mu.Unlock()
			c.returnQueue.Push(e)
			return
		}
		// Budget exhausted with the write still outstanding; the entry is
		// forced out on the error path
		c.removeEntryLocked(e)
		e.mu.Unlock()
		c.mon.counters.ReturnQueueRemovedFromCacheCount.Add(1)
		c.finishRemoval(e, events.EventEntryRemoved)
		c.throttle.logMessage(MsgEntryRemovedOnError, nil, map[string]string{"key": e.key})
		return
	}

	if !accel && timeSinceAccess < c.mutable.untouchedExpirationMillis.Load() {
		if int64(c.mainQueue.Len()) < c.mutable.mainQueueMaxTargetSize.Load() {
			// Retain for another full cycle
			e.fullCycleCount++
			e.returnRequeues = 0
			e.inMainQueueUntil.Store(now + c.mutable.mainQueueCacheTimeMillis.Load())
			e.mu.Unlock()
			c.mon.counters.ReturnQueueRetainedCount.Add(1)
			metrics.EntriesRetainedTotal.WithLabelValues(c.opts.CacheName).Inc()
			c.mainQueue.Push(e)
			c.publish(events.EventEntryRetained, e.key)
			return
		}
		c.mon.counters.ReturnQueueItemNotRetainedDueToMainQueueSize.Add(1)
	}

	// Normal expiry
	lostFailedWrite := e.prevFailedWrite != nil
	c.removeEntryLocked(e)
	e.mu.Unlock()
	if lostFailedWrite {
		c.throttle.logMessage(MsgStorageWriteDataLoss, nil, map[string]string{"key": e.key})
	}
	c.mon.counters.ReturnQueueExpiredFromCacheCount.Add(1)
	metrics.EntriesExpiredTotal.WithLabelValues(c.opts.CacheName).Inc()
	c.finishRemoval(e, events.EventEntryExpired)
}
