// Package director assembles a stage, a singleton registry, and the
// machinery around them into one runnable unit. A Director is built with a
// Builder and wires the journal, the tracer, and the monitor the same way
// for every program that uses it.
package director

import (
	"context"

	"github.com/sarchlab/torii/journal"
	"github.com/sarchlab/torii/monitoring"
	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
	"github.com/sarchlab/torii/trace"
)

// A Director provides the services required to run a stage.
type Director struct {
	id string

	st       *stage.Stage
	registry *singleton.Registry
	loop     *stage.Loop
	monitor  *monitoring.Monitor

	recorder    journal.Recorder
	runRecorder *journal.RunRecorder
	tenureStats *trace.TenureStats
}

// ID returns the generated ID of the director.
func (d *Director) ID() string {
	return d.id
}

// Stage returns the stage the director runs.
func (d *Director) Stage() *stage.Stage {
	return d.st
}

// Registry returns the singleton registry watching the stage.
func (d *Director) Registry() *singleton.Registry {
	return d.registry
}

// Loop returns the loop that steps the stage.
func (d *Director) Loop() *stage.Loop {
	return d.loop
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (d *Director) Monitor() *monitoring.Monitor {
	return d.monitor
}

// Recorder returns the journal recorder, or nil if journaling is disabled.
func (d *Director) Recorder() journal.Recorder {
	return d.recorder
}

// TenureStats returns the slot tenure aggregation, or nil if tracing is
// disabled.
func (d *Director) TenureStats() *trace.TenureStats {
	return d.tenureStats
}

// Play puts the stage in play mode.
func (d *Director) Play() {
	d.st.Play()
}

// LoadScene loads a new scene on the stage.
func (d *Director) LoadScene(name string) {
	d.st.LoadScene(name)
}

// Run steps the stage at the configured rate until ctx is canceled.
func (d *Director) Run(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- d.loop.Run()
	}()

	select {
	case <-ctx.Done():
		d.loop.Stop()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Terminate stops the loop and flushes the journal. It must be called once,
// after Run returns.
func (d *Director) Terminate() {
	d.loop.Stop()

	if d.runRecorder != nil {
		d.runRecorder.End()
	} else if d.recorder != nil {
		d.recorder.Flush()
	}
}
