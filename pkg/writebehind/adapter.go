package writebehind

import "context"

// Store is the backing store at the cache's boundary. V, U and W are the
// cached value, the client update and the storage payload respectively;
// the cache treats the store as an opaque read/write oracle.
//
// Both methods run on worker goroutines and may be long-running. The
// passed context is cancelled only at cache shutdown; a storage call
// slower than the cache's internal sleep bound still completes normally.
type Store[W any] interface {
	Read(ctx context.Context, key string) (W, error)
	Write(ctx context.Context, key string, payload W) error
}

// WriteSplit is the outcome of splitting a cached value into the payload
// to write out now and the value retained in memory.
type WriteSplit[V, W any] struct {
	// Payload is sent to storage when HasPayload is true
	Payload    W
	HasPayload bool

	// Retained replaces the in-memory value after the split
	Retained V
}

// Adapter supplies the value composition rules for a concrete cache: how
// storage payloads become cached values, how client updates apply, what a
// write cycle sends to storage, and how a refresh read reconciles with
// the in-memory state.
//
// Cached values should behave as values: the cache hands them to clients
// without copying, so mutating a returned V must not affect the cached
// state.
type Adapter[V, U, W any] interface {
	// ValueFromStorage converts an initial storage read into the cached value
	ValueFromStorage(key string, payload W) (V, error)

	// ApplyUpdate returns the cached value with one client update applied
	ApplyUpdate(value V, update U) V

	// SplitForWrite decides what goes to storage now and what stays
	// cached. HasPayload is false when nothing has accumulated.
	SplitForWrite(key string, value V) WriteSplit[V, W]

	// WriteCompleted marks a previously split payload durable once its
	// storage write succeeded
	WriteCompleted(value V, payload W) V

	// MergeWithResync reconciles a refresh read with the current
	// in-memory state. pending carries the updates collected since the
	// last reconciliation for adapters that replay rather than track
	// written-but-not-durable data in the value itself.
	MergeWithResync(key string, payload W, current V, pending []U) (V, error)

	// MergeFailedWrites combines the payload of an earlier failed write
	// with a newer one into a single payload
	MergeFailedWrites(older, newer W) W
}
