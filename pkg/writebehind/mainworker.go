package writebehind

import (
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
)

// runMainQueue is the periodic cycle point of the pipeline. Entries whose
// main-queue residency elapsed get their accumulated updates split into a
// storage write, optionally a refresh read scheduled, and move on to the
// return queue. Size pressure above the soft target shortens residency to
// the configured minimum; flush and shutdown drop residency entirely.
func (c *Cache[V, U, W]) runMainQueue() {
	for {
		if c.stopping() {
			return
		}
		metrics.QueueSize.WithLabelValues(c.opts.CacheName, "main").Set(float64(c.mainQueue.Len()))

		e, ok := c.mainQueue.Peek()
		if !ok {
			c.mainQueue.WaitWake(c.maxSleep(), c.stopCh)
			continue
		}

		now := c.clock.Now()
		due := e.inMainQueueUntil.Load()
		ready := now >= due || c.accelerated()
		if !ready {
			if int64(c.mainQueue.Len()) > c.mutable.mainQueueMaxTargetSize.Load() {
				span := c.mutable.mainQueueCacheTimeMillis.Load() - c.mutable.mainQueueCacheTimeMinMillis.Load()
				ready = now >= due-span
			}
		}
		if !ready {
			wait := time.Duration(due-now) * time.Millisecond
			if ms := c.maxSleep(); wait > ms {
				wait = ms
			}
			c.mainQueue.WaitWake(wait, c.stopCh)
			continue
		}

		c.mainQueue.TryPop()
		c.processMainEntry(e, c.clock.Now())
	}
}

func (c *Cache[V, U, W]) processMainEntry(e *entry[V, U, W], now int64) {
	e.mu.Lock()
	if e.state == StateRemoved {
		e.mu.Unlock()
		return
	}

	accel := c.accelerated()
	loaded := e.state == StateLoaded || e.state == StateResyncPending
	writingAllowed := !(e.resyncFailedFinal && !c.opts.AllowDataWritingAfterResyncFailedFinal)

	var toWrite *writeRequest[V, U, W]
	if loaded && writingAllowed {
		if e.prevFailedWrite != nil && !c.opts.CanMergeWrites {
			// The failed payload must be retried alone before anything
			// newer goes out
			payload := *e.prevFailedWrite
			e.prevFailedWrite = nil
			e.writesPending++
			toWrite = &writeRequest[V, U, W]{e: e, payload: payload}
		} else if e.unwritten || e.prevFailedWrite != nil {
			split := c.adapter.SplitForWrite(e.key, e.value)
			payload := split.Payload
			has := split.HasPayload
			if split.HasPayload {
				e.value = split.Retained
				e.unwritten = false
			}
			if e.prevFailedWrite != nil {
				if has {
					payload = c.adapter.MergeFailedWrites(*e.prevFailedWrite, payload)
				} else {
					payload = *e.prevFailedWrite
				}
				e.prevFailedWrite = nil
				has = true
			}
			if has {
				e.writesPending++
				toWrite = &writeRequest[V, U, W]{e: e, payload: payload}
			}
		}
	}

	if e.cycleHadFailure {
		e.cycleHadFailure = false
		e.fullCycleFailureCount++
		if !e.retriesSuppressed && e.fullCycleFailureCount >= c.opts.FullCacheCycleFailureMaxRetryCount {
			e.retriesSuppressed = true
			c.mon.counters.FullCycleRetriesSuppressedCount.Add(1)
			c.throttle.logMessage(MsgFullCycleRetriesExhausted, nil, map[string]string{"key": e.key})
		}
	}

	scheduleResync := !accel && e.state == StateLoaded && writingAllowed &&
		!e.resyncFailedFinal && !e.readPending && !e.retriesSuppressed
	if scheduleResync {
		e.state = StateResyncPending
		e.readPending = true
	}

	returnDelay := c.mutable.returnQueueCacheTimeMinMs.Load()
	if accel {
		returnDelay = 0
	}
	e.inReturnQueueUntil.Store(now + returnDelay)
	e.returnRequeues = 0
	e.mu.Unlock()

	if toWrite != nil {
		c.writeQueue.Push(toWrite)
	}
	if scheduleResync {
		c.readQueue.Push(&readRequest[V, U, W]{e: e, refresh: true})
	}
	c.returnQueue.Push(e)
}
