package writebehind

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/storage"
)

func testOptions(name string) Options {
	o := DefaultOptions(name)
	o.MainQueueCacheTime = 100 * time.Millisecond
	o.MainQueueCacheTimeMin = 20 * time.Millisecond
	o.ReturnQueueCacheTimeMin = 50 * time.Millisecond
	o.UntouchedItemCacheExpirationDelay = 10 * time.Second
	o.MaxSleepTime = 20 * time.Millisecond
	return o
}

func startStringCache(t *testing.T, opts Options, store storage.Store) *StringCache {
	t.Helper()
	cache, err := NewStringCache(opts, store)
	require.NoError(t, err)
	require.NoError(t, cache.Start())
	return cache
}

// TestSimpleSuccess loads a key, applies one update and shuts down; the
// update must land in storage and the pipeline counters must match.
func TestSimpleSuccess(t *testing.T) {
	store := storage.NewMemStore()
	cache := startStringCache(t, testOptions("simple"), store)

	v, ok, err := cache.ReadFor("a-key", 500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", v.String())

	applied, err := cache.WriteIfCached("a-key", 'u')
	require.NoError(t, err)
	require.True(t, applied)

	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)

	assert.Equal(t, map[string]string{"a-key": "u"}, store.Snapshot())

	st := cache.Status(0)
	assert.Equal(t, int64(1), st.Counters.StorageReadInitialAttempts)
	assert.Equal(t, int64(1), st.Counters.StorageWriteAttempts)
	assert.Equal(t, int64(1), st.Counters.CacheWriteAttempts)
	assert.Equal(t, int64(1), st.Counters.ReturnQueueExpiredFromCacheCount)
	assert.Equal(t, ControlShutdownCompleted, st.ControlState)
	assert.Equal(t, 0, st.CurrentCacheSize)
	assert.False(t, st.EverythingAlive)
}

// TestResyncComposesWithExternalWriter models a backing store that
// appends a marker on every write; after a full cycle the storage value
// carries the marker and the update, and every update lands exactly once.
func TestResyncComposesWithExternalWriter(t *testing.T) {
	store := storage.NewMemStore()
	store.SetWriteTransform(func(existing, incoming []byte) []byte {
		out := append([]byte(nil), existing...)
		out = append(out, []byte("###")...)
		return append(out, incoming...)
	})
	cache := startStringCache(t, testOptions("resync"), store)

	keys := []string{"k0", "k1", "k2", "k3", "k4"}
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(key string, update byte) {
			defer wg.Done()
			_, ok, err := cache.ReadFor(key, time.Second)
			if !assert.NoError(t, err) || !assert.True(t, ok) {
				return
			}
			applied, err := cache.WriteIfCached(key, update)
			assert.NoError(t, err)
			assert.True(t, applied)
		}(key, byte('a'+i))
	}
	wg.Wait()

	// Let at least one full cycle run, then drain
	time.Sleep(300 * time.Millisecond)
	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)

	snapshot := store.Snapshot()
	for i, key := range keys {
		assert.Equal(t, "###"+string(byte('a'+i)), snapshot[key], "key %s", key)
	}
}

// TestMultiCycleComposition spreads updates across several cycles; the
// storage value must contain each update exactly once and one marker per
// storage write, in write order.
func TestMultiCycleComposition(t *testing.T) {
	store := storage.NewMemStore()
	store.SetWriteTransform(func(existing, incoming []byte) []byte {
		out := append([]byte(nil), existing...)
		out = append(out, '#')
		return append(out, incoming...)
	})
	cache := startStringCache(t, testOptions("multicycle"), store)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	updates := "abcdef"
	for i := 0; i < len(updates); i++ {
		applied, err := cache.WriteIfCached("k", updates[i])
		require.NoError(t, err)
		require.True(t, applied)
		time.Sleep(60 * time.Millisecond)
	}

	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)

	value := store.Snapshot()["k"]
	writes := cache.Status(0).Counters.StorageWriteSuccesses

	assert.Equal(t, int(writes), strings.Count(value, "#"))
	stripped := strings.ReplaceAll(value, "#", "")
	assert.Equal(t, updates, stripped)
}

// TestFlakyReadsRetainAllUpdates retries reads that fail on their first
// attempt; no update may be lost.
func TestFlakyReadsRetainAllUpdates(t *testing.T) {
	store := storage.NewMemStore()
	boom := errors.New("transient read failure")
	store.SetReadFailer(func(key string, attempt int) error {
		if attempt%3 == 1 {
			return boom
		}
		return nil
	})

	opts := testOptions("flaky")
	opts.ReadFailureMaxRetryCount = 4
	opts.CanMergeWrites = true
	cache := startStringCache(t, opts, store)

	keys := []string{"f0", "f1", "f2"}
	for i, key := range keys {
		_, ok, err := cache.ReadFor(key, 2*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		for j := 0; j < 3; j++ {
			applied, err := cache.WriteIfCached(key, byte('a'+i*3+j))
			require.NoError(t, err)
			require.True(t, applied)
		}
	}

	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)

	snapshot := store.Snapshot()
	for i, key := range keys {
		expected := []byte{byte('a' + i*3), byte('a' + i*3 + 1), byte('a' + i*3 + 2)}
		got := []byte(snapshot[key])
		assert.ElementsMatch(t, expected, got, "key %s", key)
	}
}

// TestFlushWithoutShutdown drains two delayed writes within the flush
// budget and leaves the cache running and empty
func TestFlushWithoutShutdown(t *testing.T) {
	store := storage.NewMemStore()
	store.SetWriteDelay(500 * time.Millisecond)

	opts := testOptions("flush")
	opts.WritePoolMinSize = 2
	opts.WritePoolMaxSize = 2
	cache := startStringCache(t, opts, store)

	for _, key := range []string{"fa", "fb"} {
		_, ok, err := cache.ReadFor(key, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		applied, err := cache.WriteIfCached(key, 'z')
		require.NoError(t, err)
		require.True(t, applied)
	}

	start := time.Now()
	drained, err := cache.FlushFor(2 * time.Second)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.True(t, drained)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 1500*time.Millisecond)

	assert.Equal(t, ControlRunning, cache.ControlState())
	assert.Equal(t, 0, cache.Status(0).CurrentCacheSize)
	assert.Equal(t, "z", store.Snapshot()["fa"])
	assert.Equal(t, "z", store.Snapshot()["fb"])

	// Still usable after the flush
	_, ok, err := cache.ReadFor("fa", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = cache.ShutdownFor(2 * time.Second)
	require.NoError(t, err)
}

// TestControlStateGate verifies the lifecycle gating of every client
// operation
func TestControlStateGate(t *testing.T) {
	store := storage.NewMemStore()
	cache, err := NewStringCache(testOptions("gate"), store)
	require.NoError(t, err)

	_, _, err = cache.ReadFor("k", time.Millisecond)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = cache.WriteIfCached("k", 'u')
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, cache.Preload("k"), ErrNotStarted)
	_, err = cache.FlushFor(time.Second)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, cache.Start())
	assert.Error(t, cache.Start())

	_, err = cache.ShutdownFor(time.Second)
	require.NoError(t, err)

	_, _, err = cache.ReadFor("k", time.Millisecond)
	assert.ErrorIs(t, err, ErrShutdown)
	_, err = cache.WriteIfCached("k", 'u')
	assert.ErrorIs(t, err, ErrShutdown)
	assert.ErrorIs(t, cache.Start(), ErrShutdown)
	_, err = cache.ShutdownFor(time.Second)
	assert.ErrorIs(t, err, ErrShutdown)
}

// TestNilKey verifies the empty-key error and its counter
func TestNilKey(t *testing.T) {
	store := storage.NewMemStore()
	cache := startStringCache(t, testOptions("nilkey"), store)
	defer cache.ShutdownFor(time.Second)

	_, _, err := cache.ReadFor("", time.Millisecond)
	assert.ErrorIs(t, err, ErrNilKey)
	_, err = cache.WriteIfCached("", 'u')
	assert.ErrorIs(t, err, ErrNilKey)

	assert.Equal(t, int64(2), cache.Status(0).Counters.CheckCacheNullKey)
}

// TestTooManyUpdates verifies the pending-update cap surfaces exactly one
// refusal and leaves the accepted prefix intact
func TestTooManyUpdates(t *testing.T) {
	store := storage.NewMemStore()
	opts := testOptions("toomany")
	opts.MainQueueCacheTime = 10 * time.Second // keep the cycle away
	opts.MaxUpdatesToCollect = 3
	cache := startStringCache(t, opts, store)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	for _, u := range []byte("abc") {
		applied, err := cache.WriteIfCached("k", u)
		require.NoError(t, err)
		require.True(t, applied)
	}
	_, err = cache.WriteIfCached("k", 'd')
	assert.ErrorIs(t, err, ErrTooManyUpdates)
	assert.Equal(t, int64(1), cache.Status(0).Counters.CacheWriteTooManyUpdates)

	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)
	assert.Equal(t, "abc", store.Snapshot()["k"])
}

// TestWriteBeforeLoad verifies writes against a not-yet-loaded entry fail
func TestWriteBeforeLoad(t *testing.T) {
	store := storage.NewMemStore()
	store.SetReadDelay(200 * time.Millisecond)
	cache := startStringCache(t, testOptions("notloaded"), store)
	defer cache.ShutdownFor(time.Second)

	require.NoError(t, cache.Preload("k"))
	_, err := cache.WriteIfCached("k", 'u')
	assert.ErrorIs(t, err, ErrNotYetLoaded)
}

// TestSlowStorageReadCompletes verifies a storage read far beyond the
// internal sleep bound still completes
func TestSlowStorageReadCompletes(t *testing.T) {
	store := storage.NewMemStore()
	store.Seed("k", []byte("seeded"))
	store.SetReadDelay(300 * time.Millisecond)
	cache := startStringCache(t, testOptions("slowread"), store)
	defer cache.ShutdownFor(time.Second)

	start := time.Now()
	v, ok, err := cache.ReadFor("k", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seeded", v.String())
	assert.GreaterOrEqual(t, time.Since(start), 280*time.Millisecond)
}

// TestReadTimeout verifies a bounded wait returns empty, and the OrErr
// variant raises
func TestReadTimeout(t *testing.T) {
	store := storage.NewMemStore()
	store.SetReadDelay(400 * time.Millisecond)
	cache := startStringCache(t, testOptions("timeout"), store)
	defer cache.ShutdownFor(time.Second)

	_, ok, err := cache.ReadFor("k", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cache.ReadForOrErr("k2", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	assert.GreaterOrEqual(t, cache.Status(0).Counters.CacheReadTimeouts, int64(2))
}

// TestReadFailedFinalKeep parks the entry so operations fail with the
// load error
func TestReadFailedFinalKeep(t *testing.T) {
	store := storage.NewMemStore()
	boom := errors.New("storage down")
	store.SetReadFailer(func(key string, attempt int) error { return boom })

	opts := testOptions("failkeep")
	opts.ReadFailureMaxRetryCount = 2
	opts.InitialReadFailedFinalAction = ReadFailedKeep
	cache := startStringCache(t, opts, store)
	defer cache.ShutdownFor(time.Second)

	_, _, err := cache.ReadFor("k", 2*time.Second)
	assert.ErrorIs(t, err, ErrFailedToLoad)

	_, err = cache.WriteIfCached("k", 'u')
	assert.ErrorIs(t, err, ErrFailedToLoad)

	_, _, err = cache.ReadIfCached("k")
	assert.ErrorIs(t, err, ErrFailedToLoad)

	st := cache.Status(0)
	assert.Equal(t, int64(2), st.Counters.StorageReadInitialAttempts)
	assert.Equal(t, int64(2), st.Counters.StorageReadInitialFailures)
}

// TestReadFailedFinalRemove keeps removing the entry until the client's
// removed-retry budget runs out
func TestReadFailedFinalRemove(t *testing.T) {
	store := storage.NewMemStore()
	store.SetReadFailer(func(key string, attempt int) error {
		return errors.New("storage down")
	})

	opts := testOptions("failremove")
	opts.ReadFailureMaxRetryCount = 1
	opts.InitialReadFailedFinalAction = ReadFailedRemove
	opts.MaxCacheRemovedRetries = 2
	cache := startStringCache(t, opts, store)
	defer cache.ShutdownFor(time.Second)

	_, _, err := cache.ReadFor("k", 3*time.Second)
	assert.ErrorIs(t, err, ErrRemovedRetryExhausted)
	assert.Equal(t, int64(1), cache.Status(0).Counters.CheckCacheRemovedRetryExhausted)
}

// TestFailedWriteMergesIntoNextCycle exhausts the write retry budget,
// then the retained payload goes out with a later cycle
func TestFailedWriteMergesIntoNextCycle(t *testing.T) {
	store := storage.NewMemStore()
	boom := errors.New("write refused")
	store.SetWriteFailer(func(key string, attempt int) error {
		if attempt <= 2 {
			return boom
		}
		return nil
	})

	opts := testOptions("mergewrites")
	opts.WriteFailureMaxRetryCount = 2
	opts.CanMergeWrites = true
	cache := startStringCache(t, opts, store)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	applied, err := cache.WriteIfCached("k", 'u')
	require.NoError(t, err)
	require.True(t, applied)

	require.Eventually(t, func() bool {
		return store.Snapshot()["k"] == "u"
	}, 5*time.Second, 20*time.Millisecond)

	st := cache.Status(0)
	assert.Equal(t, int64(2), st.Counters.StorageWriteFailures)
	assert.GreaterOrEqual(t, st.Counters.StorageWriteAttempts, int64(3))

	_, err = cache.ShutdownFor(2 * time.Second)
	require.NoError(t, err)
}

// TestExhaustedWriteWithoutMergingCountsDataLoss drops the payload when
// merging is disallowed and reports external data loss
func TestExhaustedWriteWithoutMergingCountsDataLoss(t *testing.T) {
	store := storage.NewMemStore()
	store.SetWriteFailer(func(key string, attempt int) error {
		return errors.New("write refused")
	})

	opts := testOptions("dataloss")
	opts.WriteFailureMaxRetryCount = 2
	opts.CanMergeWrites = false
	cache := startStringCache(t, opts, store)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	applied, err := cache.WriteIfCached("k", 'u')
	require.NoError(t, err)
	require.True(t, applied)

	drained, err := cache.ShutdownFor(3 * time.Second)
	require.NoError(t, err)
	assert.True(t, drained)

	st := cache.Status(0)
	assert.Equal(t, int64(1), st.Counters.ExternalDataLossCount)
	assert.Empty(t, store.Snapshot())
}

// TestCacheFull verifies admission stops at the hard element limit
func TestCacheFull(t *testing.T) {
	store := storage.NewMemStore()
	opts := testOptions("full")
	opts.MainQueueMaxTargetSize = 2
	opts.MaxCacheElementsHardLimit = 2
	cache := startStringCache(t, opts, store)
	defer cache.ShutdownFor(time.Second)

	require.NoError(t, cache.Preload("k1"))
	require.NoError(t, cache.Preload("k2"))
	err := cache.Preload("k3")
	assert.ErrorIs(t, err, ErrCacheFull)
	assert.Equal(t, int64(1), cache.Status(0).Counters.CheckCacheFullExceptions)
}

// TestReadIfCachedNonBlocking verifies the non-blocking read contract
func TestReadIfCachedNonBlocking(t *testing.T) {
	store := storage.NewMemStore()
	store.SetReadDelay(100 * time.Millisecond)
	cache := startStringCache(t, testOptions("nonblocking"), store)
	defer cache.ShutdownFor(time.Second)

	_, ok, err := cache.ReadIfCached("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Preload("k"))
	_, ok, err = cache.ReadIfCached("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := cache.ReadIfCached("k")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err = cache.ReadIfCachedOrErr("unknown")
	assert.ErrorIs(t, err, ErrNotCached)
}

// TestWriteIfCachedAndRead returns the post-update view
func TestWriteIfCachedAndRead(t *testing.T) {
	store := storage.NewMemStore()
	store.Seed("k", []byte("base"))
	cache := startStringCache(t, testOptions("writeread"), store)
	defer cache.ShutdownFor(2 * time.Second)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	v, ok, err := cache.WriteIfCachedAndRead("k", 'x')
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "basex", v.String())

	// Not-resident key: empty, not an error
	_, ok, err = cache.WriteIfCachedAndRead("other", 'x')
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStatusSnapshotCaching verifies the snapshot is cached up to maxAge
func TestStatusSnapshotCaching(t *testing.T) {
	store := storage.NewMemStore()
	cache := startStringCache(t, testOptions("status"), store)
	defer cache.ShutdownFor(time.Second)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	st1 := cache.Status(time.Hour)
	st2 := cache.Status(time.Hour)
	assert.Equal(t, st1.TakenAtMillis, st2.TakenAtMillis)

	assert.Equal(t, ControlRunning, st1.ControlState)
	assert.True(t, st1.EverythingAlive)
	assert.True(t, st1.MainQueueWorkerAlive)
	assert.True(t, st1.ReadQueueWorkerAlive)
	assert.True(t, st1.WriteQueueWorkerAlive)
	assert.True(t, st1.ReturnQueueWorkerAlive)
	assert.Equal(t, 1, st1.CurrentCacheSize)

	time.Sleep(10 * time.Millisecond)
	st3 := cache.Status(0)
	assert.GreaterOrEqual(t, st3.TakenAtMillis, st1.TakenAtMillis)
}

// TestEntryRetainedAcrossCycles verifies a touched entry survives several
// cycles and the retention counter moves
func TestEntryRetainedAcrossCycles(t *testing.T) {
	store := storage.NewMemStore()
	cache := startStringCache(t, testOptions("retained"), store)

	_, ok, err := cache.ReadFor("k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	deadline := time.Now().Add(600 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, _, err := cache.ReadIfCached("k")
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	st := cache.Status(0)
	assert.Equal(t, 1, st.CurrentCacheSize)
	assert.GreaterOrEqual(t, st.Counters.ReturnQueueRetainedCount, int64(1))

	_, err = cache.ShutdownFor(2 * time.Second)
	require.NoError(t, err)
}

// TestLogNonStandardMessage verifies the non-standard message path feeds
// last-message tracking
func TestLogNonStandardMessage(t *testing.T) {
	store := storage.NewMemStore()
	cache := startStringCache(t, testOptions("nonstandard"), store)
	defer cache.ShutdownFor(time.Second)

	cache.LogNonStandardMessage(SeverityExternalWarn, "host-check", fmt.Errorf("disk filling"), nil)

	st := cache.Status(0)
	assert.Equal(t, int64(1), st.Counters.ExternalWarnCount)
	assert.NotZero(t, st.LastWarnTimestamp)
	assert.Contains(t, st.LastWarnText, "disk filling")
}
