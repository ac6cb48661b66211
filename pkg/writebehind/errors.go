package writebehind

import "errors"

// Client-facing error kinds. Callers match with errors.Is; most are
// wrapped with key context at the call site.
var (
	// ErrNotStarted is returned while the cache has not been started
	ErrNotStarted = errors.New("cache not started")

	// ErrShutdown is returned once shutdown has begun or completed
	ErrShutdown = errors.New("cache shut down")

	// ErrNotUsable is returned while the cache is flushing or otherwise
	// unable to accept client operations
	ErrNotUsable = errors.New("cache not usable")

	// ErrCacheFull is returned when admission is denied at the hard
	// element limit
	ErrCacheFull = errors.New("cache full")

	// ErrNilKey is returned for the empty key
	ErrNilKey = errors.New("nil cache key")

	// ErrNotYetLoaded is returned for writes against an entry whose
	// initial read has not completed
	ErrNotYetLoaded = errors.New("entry not yet loaded")

	// ErrFailedToLoad is returned for operations against an entry whose
	// read failed terminally
	ErrFailedToLoad = errors.New("entry failed to load")

	// ErrRemovedRetryExhausted is returned when a client operation kept
	// observing entries removed from the cache
	ErrRemovedRetryExhausted = errors.New("removed from cache, retries exhausted")

	// ErrRemovedFromCache names the removed-from-cache condition; client
	// reads that observe a removal retry instead and end with
	// ErrRemovedRetryExhausted
	ErrRemovedFromCache = errors.New("removed from cache")

	// ErrTooManyUpdates is returned when a write would exceed the
	// pending update limit
	ErrTooManyUpdates = errors.New("too many pending updates")

	// ErrTimeout is returned by the OrErr read variants when the wait
	// expired before the entry loaded
	ErrTimeout = errors.New("cache read timeout")

	// ErrNotCached is returned by the OrErr variants when the key is not
	// resident
	ErrNotCached = errors.New("key not cached")
)
