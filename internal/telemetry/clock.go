package telemetry

import (
	"sync"
	"time"
)

// Clock supplies timestamps in seconds since the epoch.
// The second return value is false while the time is not yet known,
// for example before NTP has synchronised after boot.
type Clock interface {
	Now() (int64, bool)
}

// SystemClock reads the host clock and treats any time before
// MinValidYear as not yet synchronised.
type SystemClock struct {
	minValidYear int
	now          func() time.Time
}

// NewSystemClock creates a clock backed by time.Now.
func NewSystemClock(minValidYear int) *SystemClock {
	return &SystemClock{minValidYear: minValidYear, now: time.Now}
}

// Now returns the current epoch seconds.
func (c *SystemClock) Now() (int64, bool) {
	t := c.now()
	if t.Year() < c.minValidYear {
		return 0, false
	}
	return t.Unix(), true
}

// ManualClock is a settable clock.
type ManualClock struct {
	mu    sync.Mutex
	ts    int64
	valid bool
}

// NewManualClock creates a clock that is not valid until Set is called.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Set fixes the clock at ts and marks it valid.
func (c *ManualClock) Set(ts int64) {
	c.mu.Lock()
	c.ts, c.valid = ts, true
	c.mu.Unlock()
}

// Advance moves a valid clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	c.mu.Lock()
	c.ts += d
	c.mu.Unlock()
}

// Invalidate marks the clock as unsynchronised.
func (c *ManualClock) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Now returns the fixed time.
func (c *ManualClock) Now() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts, c.valid
}
