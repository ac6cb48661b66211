/*
Package storage provides the backing store interface consumed by Burrow
caches, together with a BoltDB implementation and an in-memory test double.

The caches treat the store as an opaque read/write oracle over string keys
and byte payloads:

	payload, err := store.Read(ctx, "a-key")
	err = store.Write(ctx, "a-key", []byte("u"))

BoltStore persists payloads in a single bucket of a bbolt database file:

	store, err := storage.NewBoltStore("/var/lib/burrow")
	defer store.Close()

MemStore is for tests and demos. It supports injectable read/write latency,
scripted per-attempt failures, and a write transform that models a backing
store with concurrent external writers (the resync scenarios depend on
this):

	store := storage.NewMemStore()
	store.SetWriteDelay(500 * time.Millisecond)
	store.SetWriteFailer(func(key string, attempt int) error {
		if attempt%2 == 1 {
			return errors.New("flaky")
		}
		return nil
	})
*/
package storage
