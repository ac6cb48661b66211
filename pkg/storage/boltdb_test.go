package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBoltStoreRoundTrip tests persistence across store reopens
func TestBoltStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)

	_, err = store.Read(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Write(ctx, "a-key", []byte("payload")))
	payload, err := store.Read(ctx, "a-key")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))

	require.NoError(t, store.Close())

	// Reopen and read back
	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	payload, err = store.Read(ctx, "a-key")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))
}
