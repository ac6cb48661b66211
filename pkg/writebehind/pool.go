package writebehind

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
)

// pool is a bounded goroutine pool for storage I/O. A disabled pool
// ((-1,-1) configuration) runs every task inline on the caller. Workers
// above the minimum exit after an idle period.
type pool struct {
	name     string
	minSize  int
	maxSize  int
	liveness *metrics.LivenessRegistry

	tasks   chan func()
	stopCh  chan struct{}
	wg      sync.WaitGroup
	workers atomic.Int32
	stopped atomic.Bool
}

const poolIdleTimeout = 30 * time.Second

func newPool(name string, minSize, maxSize int, liveness *metrics.LivenessRegistry) *pool {
	p := &pool{
		name:     name,
		minSize:  minSize,
		maxSize:  maxSize,
		liveness: liveness,
		stopCh:   make(chan struct{}),
	}
	if !p.disabled() {
		p.tasks = make(chan func())
		for i := 0; i < minSize; i++ {
			p.spawn(true)
		}
	}
	liveness.Report(name, true, "")
	return p
}

func (p *pool) disabled() bool {
	return p.maxSize <= 0
}

// Submit runs fn on the pool, or inline when the pool is disabled. It
// blocks while all workers are busy and the pool is at maximum size.
func (p *pool) Submit(fn func()) {
	if p.disabled() {
		fn()
		return
	}
	if p.stopped.Load() {
		return
	}

	select {
	case p.tasks <- fn:
		return
	default:
	}

	if int(p.workers.Load()) < p.maxSize {
		p.spawn(false)
	}

	select {
	case p.tasks <- fn:
	case <-p.stopCh:
	}
}

func (p *pool) spawn(core bool) {
	p.workers.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.workers.Add(-1)
		idle := time.NewTimer(poolIdleTimeout)
		defer idle.Stop()
		for {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(poolIdleTimeout)
			select {
			case fn := <-p.tasks:
				fn()
			case <-idle.C:
				// Core workers stay for the life of the pool
				if !core {
					return
				}
			case <-p.stopCh:
				return
			}
		}
	}()
}

// Stop drains the pool, waiting until the deadline for running tasks
func (p *pool) Stop(deadline time.Time) bool {
	if !p.stopped.CompareAndSwap(false, true) {
		return true
	}
	close(p.stopCh)
	p.liveness.Report(p.name, false, "stopped")
	if p.disabled() {
		return true
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Alive reports whether the pool is accepting work
func (p *pool) Alive() bool {
	return !p.stopped.Load()
}
