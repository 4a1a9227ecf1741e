package stage

import (
	"log"
	"time"
)

// Rate defines how often a loop steps the stage, in steps per second.
type Rate float64

// Common step rates.
const (
	Hz  Rate = 1
	KHz Rate = 1e3
)

// Period returns the stage time between two consecutive steps.
//
// Period will panic if the rate is 0.
func (r Rate) Period() Uptime {
	if r == 0 {
		log.Panic("step rate cannot be 0")
	}

	return Uptime(1.0 / float64(r))
}

// Interval returns the wall-clock duration between two consecutive steps.
// It is meant to feed a time.Ticker.
func (r Rate) Interval() time.Duration {
	if r == 0 {
		log.Panic("step rate cannot be 0")
	}

	return time.Duration(float64(time.Second) / float64(r))
}
