package writebehind

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/metrics"
)

// TestPoolDisabledRunsInline tests the (-1,-1) inline mode
func TestPoolDisabledRunsInline(t *testing.T) {
	reg := metrics.NewLivenessRegistry()
	p := newPool("inline-pool", -1, -1, reg)

	var ran atomic.Int32
	p.Submit(func() { ran.Add(1) })
	// Inline execution completes before Submit returns
	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, p.Alive())

	assert.True(t, p.Stop(time.Now().Add(time.Second)))
	assert.False(t, p.Alive())
}

// TestPoolRunsConcurrently tests that pooled tasks overlap
func TestPoolRunsConcurrently(t *testing.T) {
	reg := metrics.NewLivenessRegistry()
	p := newPool("par-pool", 2, 2, reg)
	defer p.Stop(time.Now().Add(time.Second))

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	for i := 0; i < 2; i++ {
		p.Submit(func() {
			started <- struct{}{}
			<-release
		})
	}

	// Both tasks must be running at once
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("pooled task did not start")
		}
	}
	close(release)
}

// TestPoolStopWaitsForTasks tests the bounded drain
func TestPoolStopWaitsForTasks(t *testing.T) {
	reg := metrics.NewLivenessRegistry()
	p := newPool("drain-pool", 1, 1, reg)

	done := make(chan struct{})
	p.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		close(done)
	})

	require.True(t, p.Stop(time.Now().Add(time.Second)))
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the running task finished")
	}
}
