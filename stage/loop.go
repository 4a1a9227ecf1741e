package stage

import (
	"sync"
	"sync/atomic"
	"time"
)

// A Loop steps a stage at a fixed rate. When the stage reads time from a
// ManualClock, the loop advances the clock by one period per step, so stage
// time moves in fixed increments regardless of how long each step takes.
//
// The loop is the stage's update goroutine while Run executes. No other
// goroutine may mutate the stage during that time, except through Pause,
// StepOnce, and Continue.
type Loop struct {
	stage *Stage
	rate  Rate

	pauseLock sync.Mutex
	paused    atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop that steps st at rate r.
//
// NewLoop will panic if the rate is 0.
func NewLoop(st *Stage, r Rate) *Loop {
	r.Period()

	return &Loop{
		stage: st,
		rate:  r,
		stop:  make(chan struct{}),
	}
}

// Stage returns the stage the loop steps.
func (l *Loop) Stage() *Stage {
	return l.stage
}

// Rate returns the step rate of the loop.
func (l *Loop) Rate() Rate {
	return l.rate
}

// Run steps the stage until Stop is called. It blocks and should usually run
// on its own goroutine.
func (l *Loop) Run() error {
	ticker := time.NewTicker(l.rate.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return nil
		case <-ticker.C:
			l.pauseLock.Lock()
			l.stepOnce()
			l.pauseLock.Unlock()
		}
	}
}

// Pause suspends stepping before the next step boundary. Pausing a paused
// loop has no effect.
func (l *Loop) Pause() {
	if !l.paused.CompareAndSwap(false, true) {
		return
	}

	l.pauseLock.Lock()
}

// Continue resumes a paused loop. Continuing a running loop has no effect.
func (l *Loop) Continue() {
	if !l.paused.CompareAndSwap(true, false) {
		return
	}

	l.pauseLock.Unlock()
}

// Paused returns true if the loop is paused.
func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// StepOnce performs a single step. It must only be called while the loop is
// paused or before Run starts.
func (l *Loop) StepOnce() {
	l.stepOnce()
}

// Stop makes Run return after the current step. Stop can be called more than
// once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

func (l *Loop) stepOnce() {
	if c, ok := l.stage.Clock().(*ManualClock); ok {
		c.Advance(l.rate.Period())
	}

	l.stage.Step()
}
