package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when the key has no stored payload
var ErrNotFound = errors.New("key not found")

// Store is the backing store consumed by the caches. Implementations may
// be slow and may fail; both operations are called from worker goroutines
// and should honor ctx cancellation for long-running calls.
type Store interface {
	// Read returns the payload stored for key, or ErrNotFound
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores payload under key
	Write(ctx context.Context, key string, payload []byte) error
}

// Closer is implemented by stores that hold external resources
type Closer interface {
	Close() error
}
