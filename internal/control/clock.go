package control

import (
	"sync"
	"time"
)

// Clock measures elapsed time from a fixed start using the monotonic clock
// reading carried by time.Time, so wall-clock steps do not move it. Readings
// never decrease.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time
	last  float64
}

// NewClock starts a clock at the current instant
func NewClock() *Clock {
	return newClock(time.Now)
}

func newClock(now func() time.Time) *Clock {
	return &Clock{start: now(), now: now}
}

// Elapsed returns seconds since the clock started
func (c *Clock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.now().Sub(c.start).Seconds()
	if e < c.last {
		e = c.last
	}
	c.last = e

	return e
}
