package stage

import (
	"log"
	"sync"
	"time"
)

// Uptime is the time since the stage was created, in seconds. Readings are
// monotonic: a later reading is never smaller than an earlier one.
type Uptime float64

// A Clock tells the current stage time.
type Clock interface {
	Now() Uptime
}

// WallClock derives stage time from the process's monotonic clock.
type WallClock struct {
	start time.Time
}

// NewWallClock creates a WallClock that starts counting now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *WallClock) Now() Uptime {
	return Uptime(time.Since(c.start).Seconds())
}

// ManualClock is a clock that only moves when told to. It is used in tests
// and in stepped execution, where each step advances the clock by one period.
type ManualClock struct {
	mu  sync.Mutex
	now Uptime
}

// NewManualClock creates a ManualClock at time 0.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current reading.
func (c *ManualClock) Now() Uptime {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Set moves the clock to t. Moving backward violates monotonicity and
// panics.
func (c *ManualClock) Set(t Uptime) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t < c.now {
		log.Panicf("cannot move clock backward, now %.10f, target %.10f",
			c.now, t)
	}

	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d Uptime) {
	if d < 0 {
		log.Panic("cannot advance clock by a negative duration")
	}

	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
