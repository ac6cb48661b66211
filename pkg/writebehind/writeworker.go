package writebehind

import (
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/metrics"
)

// runWriteQueue is the write-queue worker loop, the mirror of the read
// side: dequeue, batch within the configured window, execute inline or on
// the write pool.
func (c *Cache[V, U, W]) runWriteQueue() {
	for {
		wr, ok := c.writeQueue.Poll(c.maxSleep(), c.stopCh)
		metrics.QueueSize.WithLabelValues(c.opts.CacheName, "write").Set(float64(c.writeQueue.Len()))
		if !ok {
			if c.stopping() {
				return
			}
			continue
		}

		batch := []*writeRequest[V, U, W]{wr}
		if d := c.opts.WriteQueueBatchingDelay; d > 0 {
			deadline := time.Now().Add(d)
			for {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					break
				}
				more, got := c.writeQueue.Poll(remaining, c.stopCh)
				if !got {
					break
				}
				batch = append(batch, more)
			}
			if c.opts.WriteQueueBatchingHook != nil {
				c.opts.WriteQueueBatchingHook(len(batch))
			}
		}

		for _, w := range batch {
			w := w
			c.writePool.Submit(func() { c.executeWrite(w) })
		}
	}
}

func (c *Cache[V, U, W]) executeWrite(wr *writeRequest[V, U, W]) {
	c.mon.storageWriteAttempt()
	wr.attempts++

	timer := metrics.NewTimer()
	err := c.store.Write(c.storageCtx, wr.e.key, wr.payload)
	timer.ObserveDurationVec(metrics.StorageWriteDuration, c.opts.CacheName)

	if err == nil {
		c.mon.storageWriteSuccess()
		e := wr.e
		e.mu.Lock()
		e.value = c.adapter.WriteCompleted(e.value, wr.payload)
		e.writesPending--
		e.writeFailureCount = 0
		e.broadcastLocked()
		e.mu.Unlock()
		c.publish(events.EventEntryWritten, e.key)
		return
	}

	c.mon.storageWriteFailure()
	e := wr.e
	e.mu.Lock()
	e.writeFailureCount = wr.attempts
	e.cycleHadFailure = true
	suppressed := e.retriesSuppressed
	e.mu.Unlock()

	if !suppressed && wr.attempts < c.opts.WriteFailureMaxRetryCount {
		c.throttle.logMessage(MsgStorageWriteFailure, err, map[string]string{"key": e.key})
		c.writeQueue.Push(wr)
		return
	}

	// Retries exhausted
	e.mu.Lock()
	e.writesPending--
	if c.opts.CanMergeWrites && e.state != StateRemoved {
		if e.prevFailedWrite != nil {
			merged := c.adapter.MergeFailedWrites(*e.prevFailedWrite, wr.payload)
			e.prevFailedWrite = &merged
		} else {
			payload := wr.payload
			e.prevFailedWrite = &payload
		}
		e.mu.Unlock()
		c.throttle.logMessage(MsgStorageWriteFailureFinal, err, map[string]string{"key": e.key})
	} else {
		e.mu.Unlock()
		// The payload has nowhere to go; data visible only in memory is lost
		c.throttle.logMessage(MsgStorageWriteDataLoss, err, map[string]string{"key": e.key})
	}
	c.publish(events.EventEntryWriteFailed, e.key)
}
