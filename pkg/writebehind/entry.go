package writebehind

import (
	"sync"
	"sync/atomic"
)

// entry is the per-key cache element. All non-atomic fields are guarded
// by mu; scheduling deadlines and the access timestamp are atomics so the
// queue workers can peek without taking the entry lock.
type entry[V, U, W any] struct {
	key string

	mu     sync.Mutex
	waitCh chan struct{}

	state EntryState
	value V

	// pending holds updates applied since the last read or resync, for
	// replay on top of the next refresh result
	pending []U

	// updatesDisabled stops pending collection after a terminal resync
	// failure with the stop-collecting policy
	updatesDisabled bool

	// resyncFailedFinal marks that refresh reads are no longer attempted
	resyncFailedFinal bool

	// prevFailedWrite holds the payload of a write whose retries were
	// exhausted, awaiting a merge into the next write
	prevFailedWrite *W

	lastReadErr error

	readFailureCount      int
	writeFailureCount     int
	fullCycleFailureCount int
	cycleHadFailure       bool
	retriesSuppressed     bool

	fullCycleCount int64
	returnRequeues int

	// writesPending counts outstanding write requests referencing this
	// entry; the return queue will not evict while it is non-zero until
	// the requeue budget runs out
	writesPending int

	// readPending marks an outstanding refresh read
	readPending bool

	// unwritten marks updates accumulated since the last write split
	unwritten bool

	lastAccess         atomic.Int64
	inMainQueueUntil   atomic.Int64
	inReturnQueueUntil atomic.Int64
}

func newEntry[V, U, W any](key string, now int64) *entry[V, U, W] {
	e := &entry[V, U, W]{
		key:    key,
		waitCh: make(chan struct{}),
		state:  StateNotYetRead,
	}
	e.lastAccess.Store(now)
	return e
}

// broadcastLocked wakes every waiter. Callers hold mu.
func (e *entry[V, U, W]) broadcastLocked() {
	close(e.waitCh)
	e.waitCh = make(chan struct{})
}

// waitChanLocked returns the channel a waiter should select on before
// releasing mu; it is closed at the next broadcast.
func (e *entry[V, U, W]) waitChanLocked() <-chan struct{} {
	return e.waitCh
}
