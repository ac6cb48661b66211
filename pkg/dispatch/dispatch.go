package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
)

var (
	// ErrNotStarted is returned for submissions before Start
	ErrNotStarted = errors.New("dispatcher not started")

	// ErrStopped is returned for submissions after Stop
	ErrStopped = errors.New("dispatcher stopped")

	// ErrQueueFull is returned when the bounded in-flight set is at
	// capacity
	ErrQueueFull = errors.New("dispatcher queue full")

	// ErrAttemptsExhausted fails a request whose attempt budget ran out
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

// Clock supplies virtual milliseconds for scheduling decisions
type Clock interface {
	Now() int64
}

type wallClock struct{}

func (wallClock) Now() int64 { return time.Now().UnixMilli() }

// Request is one unit of work; a non-nil error schedules a retry
type Request func(ctx context.Context) error

// RequestState is the lifecycle state of a submitted request
type RequestState string

const (
	StatePending RequestState = "pending"
	StateDelayed RequestState = "delayed"
	StateRunning RequestState = "running"
	StateDone    RequestState = "done"
	StateFailed  RequestState = "failed"
)

// Options configures a Dispatcher
type Options struct {
	// ServiceName identifies the instance in logs and metrics
	ServiceName string

	// MaxPendingRequests bounds the set of requests admitted but not yet
	// done or failed
	MaxPendingRequests int

	// MaxAttempts bounds total execution attempts per request
	MaxAttempts int

	// DelaysAfterFailure element i is the delay after the (i+1)-th failed
	// attempt; later failures use its last element
	DelaysAfterFailure []time.Duration

	// EarlyProcessingGracePeriod lets the delay worker hand a request to
	// the executor up to this duration before its scheduled time
	EarlyProcessingGracePeriod time.Duration

	// MaxSleepTime bounds every internal uninterrupted block
	MaxSleepTime time.Duration

	// PoolSize is the executor pool size
	PoolSize int

	// Clock supplies virtual time; nil selects the wall clock
	Clock Clock
}

// Validate checks internal constraints
func (o *Options) Validate() error {
	if o.ServiceName == "" {
		return fmt.Errorf("serviceName must not be empty")
	}
	if o.MaxPendingRequests <= 0 {
		return fmt.Errorf("maxPendingRequests must be positive")
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("maxAttempts must be positive")
	}
	if len(o.DelaysAfterFailure) == 0 {
		return fmt.Errorf("delaysAfterFailure must not be empty")
	}
	if o.MaxSleepTime <= 0 {
		return fmt.Errorf("maxSleepTime must be positive")
	}
	if o.PoolSize <= 0 {
		return fmt.Errorf("poolSize must be positive")
	}
	return nil
}

// DefaultOptions returns a usable configuration for the given service
func DefaultOptions(name string) Options {
	return Options{
		ServiceName:                name,
		MaxPendingRequests:         1000,
		MaxAttempts:                5,
		DelaysAfterFailure:         []time.Duration{100 * time.Millisecond, time.Second, 5 * time.Second},
		EarlyProcessingGracePeriod: 20 * time.Millisecond,
		MaxSleepTime:               100 * time.Millisecond,
		PoolSize:                   4,
	}
}

// Handle tracks a submitted request
type Handle struct {
	ID string

	done chan struct{}

	mu    sync.Mutex
	state RequestState
	err   error

	attempts int
	dueAt    int64
	fn       Request
}

// State returns the request's current lifecycle state
func (h *Handle) State() RequestState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the terminal error, nil until the request is done or failed
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed once the request reaches a terminal state
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the request terminates or the timeout passes
func (h *Handle) Wait(timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return true, h.Err()
	case <-timer.C:
		return false, nil
	}
}

// Counters are the dispatcher's monitoring totals
type Counters struct {
	Submitted atomic.Int64
	Rejected  atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Retried   atomic.Int64
}

// Status is a point-in-time snapshot of a dispatcher
type Status struct {
	ServiceName string

	EverythingAlive      bool
	MainQueueWorkerAlive bool
	DelayWorkerAlive     bool
	ExecutorPoolAlive    bool

	QueueSize    int
	DelayedCount int
	InFlight     int

	Submitted int64
	Rejected  int64
	Succeeded int64
	Failed    int64
	Retried   int64
}

// Dispatcher executes submitted requests on a bounded pool, delaying
// retries per the configured failure schedule. Its scheduling core is the
// same queue-and-worker design the write-behind cache pipeline uses.
type Dispatcher struct {
	opts   Options
	clock  Clock
	logger zerolog.Logger

	liveness *metrics.LivenessRegistry
	counters Counters

	mu       sync.Mutex
	ready    []*Handle
	delayed  []*Handle
	inFlight int
	pending  int

	notify chan struct{}
	tasks  chan *Handle
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
	stopped atomic.Bool
}

// New creates a dispatcher from validated options
func New(opts Options) (*Dispatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = wallClock{}
	}
	d := &Dispatcher{
		opts:     opts,
		clock:    clock,
		logger:   log.WithComponent("dispatch").With().Str("service", opts.ServiceName).Logger(),
		liveness: metrics.NewLivenessRegistry(),
		notify:   make(chan struct{}, 1),
		tasks:    make(chan *Handle),
		stopCh:   make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start launches the main-queue worker, the delay worker and the
// executor pool
func (d *Dispatcher) Start() error {
	if d.stopped.Load() {
		return ErrStopped
	}
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already started")
	}

	d.spawn("main-queue", d.runMainQueue)
	d.spawn("delay-queue", d.runDelayQueue)
	d.liveness.Report("executor-pool", true, "")
	for i := 0; i < d.opts.PoolSize; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runExecutor()
		}()
	}
	d.logger.Info().Msg("Dispatcher started")
	return nil
}

func (d *Dispatcher) spawn(name string, run func()) {
	d.liveness.Report(name, true, "")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.liveness.Report(name, false, "stopped")
		run()
	}()
}

// Submit admits a request into the bounded in-flight set
func (d *Dispatcher) Submit(fn Request) (*Handle, error) {
	if !d.started.Load() {
		return nil, ErrNotStarted
	}
	if d.stopped.Load() {
		return nil, ErrStopped
	}

	d.mu.Lock()
	if d.pending >= d.opts.MaxPendingRequests {
		d.mu.Unlock()
		d.counters.Rejected.Add(1)
		metrics.DispatchRequestsTotal.WithLabelValues(d.opts.ServiceName, "rejected").Inc()
		return nil, ErrQueueFull
	}
	h := &Handle{
		ID:    uuid.New().String(),
		done:  make(chan struct{}),
		state: StatePending,
		fn:    fn,
	}
	d.pending++
	d.ready = append(d.ready, h)
	d.mu.Unlock()

	d.counters.Submitted.Add(1)
	metrics.DispatchRequestsTotal.WithLabelValues(d.opts.ServiceName, "submitted").Inc()
	d.wake()
	return h, nil
}

func (d *Dispatcher) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// runMainQueue hands ready requests to the executor pool
func (d *Dispatcher) runMainQueue() {
	for {
		d.mu.Lock()
		var h *Handle
		if len(d.ready) > 0 {
			h = d.ready[0]
			d.ready[0] = nil
			d.ready = d.ready[1:]
			d.inFlight++
		}
		d.mu.Unlock()

		if h == nil {
			timer := time.NewTimer(d.opts.MaxSleepTime)
			select {
			case <-d.notify:
			case <-timer.C:
			case <-d.stopCh:
				timer.Stop()
				return
			}
			timer.Stop()
			continue
		}

		h.mu.Lock()
		h.state = StateRunning
		h.mu.Unlock()
		metrics.DispatchInFlight.WithLabelValues(d.opts.ServiceName).Inc()

		select {
		case d.tasks <- h:
		case <-d.stopCh:
			return
		}
	}
}

// runDelayQueue moves delayed requests back to the ready queue once
// their scheduled time, less the early-processing grace period, arrives
func (d *Dispatcher) runDelayQueue() {
	grace := d.opts.EarlyProcessingGracePeriod.Milliseconds()
	for {
		now := d.clock.Now()
		moved := false

		d.mu.Lock()
		kept := d.delayed[:0]
		for _, h := range d.delayed {
			h.mu.Lock()
			due := h.dueAt
			h.mu.Unlock()
			if due-grace <= now {
				h.mu.Lock()
				h.state = StatePending
				h.mu.Unlock()
				d.ready = append(d.ready, h)
				moved = true
			} else {
				kept = append(kept, h)
			}
		}
		d.delayed = kept
		d.mu.Unlock()

		if moved {
			d.wake()
		}

		timer := time.NewTimer(d.opts.MaxSleepTime)
		select {
		case <-timer.C:
		case <-d.stopCh:
			timer.Stop()
			return
		}
	}
}

func (d *Dispatcher) runExecutor() {
	for {
		select {
		case h := <-d.tasks:
			d.execute(h)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) execute(h *Handle) {
	err := h.fn(d.ctx)

	metrics.DispatchInFlight.WithLabelValues(d.opts.ServiceName).Dec()
	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()

	h.mu.Lock()
	h.attempts++
	attempts := h.attempts
	h.mu.Unlock()

	if err == nil {
		d.finish(h, StateDone, nil)
		d.counters.Succeeded.Add(1)
		metrics.DispatchRequestsTotal.WithLabelValues(d.opts.ServiceName, "success").Inc()
		return
	}

	if attempts >= d.opts.MaxAttempts {
		d.finish(h, StateFailed, fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, attempts, err))
		d.counters.Failed.Add(1)
		metrics.DispatchRequestsTotal.WithLabelValues(d.opts.ServiceName, "failure").Inc()
		d.logger.Warn().Err(err).Str("request_id", h.ID).Int("attempts", attempts).Msg("Request failed terminally")
		return
	}

	delay := d.delayFor(attempts)
	d.counters.Retried.Add(1)
	metrics.DispatchRequestsTotal.WithLabelValues(d.opts.ServiceName, "retry").Inc()
	metrics.DispatchAttemptDelay.WithLabelValues(d.opts.ServiceName).Observe(delay.Seconds())

	h.mu.Lock()
	h.state = StateDelayed
	h.dueAt = d.clock.Now() + delay.Milliseconds()
	h.mu.Unlock()

	d.mu.Lock()
	d.delayed = append(d.delayed, h)
	d.mu.Unlock()
}

// delayFor returns the retry delay after the given number of failed
// attempts, clamped to the last configured element
func (d *Dispatcher) delayFor(failedAttempts int) time.Duration {
	idx := failedAttempts - 1
	if idx >= len(d.opts.DelaysAfterFailure) {
		idx = len(d.opts.DelaysAfterFailure) - 1
	}
	return d.opts.DelaysAfterFailure[idx]
}

func (d *Dispatcher) finish(h *Handle, state RequestState, err error) {
	h.mu.Lock()
	h.state = state
	h.err = err
	h.mu.Unlock()
	close(h.done)

	d.mu.Lock()
	d.pending--
	d.mu.Unlock()
}

// Stop drains nothing further and terminates all workers within timeout
func (d *Dispatcher) Stop(timeout time.Duration) bool {
	if !d.stopped.CompareAndSwap(false, true) {
		return true
	}
	close(d.stopCh)
	d.cancel()
	d.liveness.Report("executor-pool", false, "stopped")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Status returns a point-in-time snapshot
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	queueSize := len(d.ready)
	delayedCount := len(d.delayed)
	inFlight := d.inFlight
	d.mu.Unlock()

	st := Status{
		ServiceName:          d.opts.ServiceName,
		MainQueueWorkerAlive: d.liveness.Alive("main-queue"),
		DelayWorkerAlive:     d.liveness.Alive("delay-queue"),
		ExecutorPoolAlive:    d.liveness.Alive("executor-pool"),
		QueueSize:            queueSize,
		DelayedCount:         delayedCount,
		InFlight:             inFlight,
		Submitted:            d.counters.Submitted.Load(),
		Rejected:             d.counters.Rejected.Load(),
		Succeeded:            d.counters.Succeeded.Load(),
		Failed:               d.counters.Failed.Load(),
		Retried:              d.counters.Retried.Load(),
	}
	st.EverythingAlive = st.MainQueueWorkerAlive && st.DelayWorkerAlive && st.ExecutorPoolAlive && !d.stopped.Load()
	return st
}
