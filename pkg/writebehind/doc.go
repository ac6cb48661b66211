/*
Package writebehind provides an in-memory write-behind cache that absorbs
frequent reads and many small updates per key, writes accumulated updates
out to a slow backing store asynchronously, and re-reads from storage in
the background to reconcile with concurrent external writers.

# Architecture

Entries live in the inflight map and ride a four-queue pipeline. Each
queue is serviced by a dedicated worker goroutine; storage I/O optionally
fans out into bounded goroutine pools.

	            client read (miss)
	                  │
	                  ▼
	   ┌─────────────────────────────┐
	   │  READ QUEUE                  │  initial loads and refresh
	   │  storage.Read → LOADED /     │  (resync) reads, batched
	   │  merge-with-resync           │  within a configurable window
	   └───────────┬─────────────────┘
	               │
	               ▼
	   ┌─────────────────────────────┐
	   │  MAIN QUEUE                  │  cycle point: split updates
	   │  split → enqueue write       │  into a write payload and
	   │  schedule resync read        │  schedule reconciliation
	   └───────────┬─────────────────┘
	               │                          ┌──────────────────┐
	               │                          │  WRITE QUEUE     │
	               ├─────────────────────────▶│  storage.Write   │
	               ▼                          │  bounded retries │
	   ┌─────────────────────────────┐        └──────────────────┘
	   │  RETURN QUEUE                │
	   │  retain (another cycle) /    │
	   │  re-queue (write pending) /  │
	   │  expire                      │
	   └─────────────────────────────┘

# Entry lifecycle

An entry is created on first access in NOT_YET_READ and becomes LOADED
once its initial read completes. Each main-queue pass moves it through
RESYNC_PENDING while a refresh read reconciles the in-memory view with
storage. The return queue retains recently touched entries for another
full cycle and expires idle ones. Read retries that run out either remove
the entry or park it in READ_FAILED_FINAL, where client operations fail
until eviction.

# Value composition

The cache is generic over the cached value V, the client update U and the
storage payload W. A host-supplied Adapter defines how payloads become
values, how updates apply, what a write cycle sends to storage, and how a
refresh read merges with locally accumulated state. StringCache is the
bundled character-sequence instantiation used by demos and tests.

# Usage

	opts := writebehind.DefaultOptions("sessions")
	cache, err := writebehind.NewStringCache(opts, store)
	if err != nil {
		return err
	}
	if err := cache.Start(); err != nil {
		return err
	}

	v, ok, err := cache.ReadFor("a-key", 500*time.Millisecond)
	applied, err := cache.WriteIfCached("a-key", 'u')

	ok, err = cache.FlushFor(2 * time.Second)
	done, err := cache.ShutdownFor(3 * time.Second)

# Failure policy

Nothing is recovered silently. Read and write retries are bounded per
entry; exhausted budgets apply the configured final actions, surface to
any waiting client, and are counted. A failed write's payload can be
merged into the next write when the host allows it; otherwise it is
dropped once its retries run out, and dropped payloads are counted as
external data loss with a last-message record.
*/
package writebehind
