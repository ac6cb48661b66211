package writebehind

import "time"

// Clock supplies virtual milliseconds for all scheduling decisions.
// Deadlines, residency times and access timestamps are expressed against
// it, which keeps the pipeline testable without wall-clock sleeps.
type Clock interface {
	// Now returns the current virtual time in milliseconds
	Now() int64
}

// WallClock is the default Clock backed by the system time
type WallClock struct{}

// Now returns the wall time in milliseconds
func (WallClock) Now() int64 {
	return time.Now().UnixMilli()
}

// ManualClock is a Clock advanced explicitly; used by tests
type ManualClock struct {
	nowMillis int64
}

// NewManualClock creates a manual clock starting at start milliseconds
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{nowMillis: start}
}

// Now returns the current manual time
func (c *ManualClock) Now() int64 {
	return c.nowMillis
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.nowMillis += d.Milliseconds()
}
