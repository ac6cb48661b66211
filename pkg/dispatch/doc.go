/*
Package dispatch provides a retry-and-rate-limit request scheduler built
on the same queue-and-worker design as the write-behind cache pipeline.

Requests are admitted into a bounded in-flight set, executed on a fixed
goroutine pool, and retried after failures with per-attempt delays from a
configured schedule (clamped to its last element). A delay worker may
hand a request to the executor slightly before its scheduled time, within
the early-processing grace period, to amortize wakeups.

	d, err := dispatch.New(dispatch.DefaultOptions("webhooks"))
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Stop(5 * time.Second)

	h, err := d.Submit(func(ctx context.Context) error {
		return deliver(ctx, payload)
	})
	if err != nil {
		return err
	}
	if done, err := h.Wait(30 * time.Second); done && err != nil {
		// attempts exhausted
	}

Status snapshots mirror the cache's: liveness of the main-queue worker,
the delay worker and the executor pool, plus queue sizes, the in-flight
count and the request counters.
*/
package dispatch
