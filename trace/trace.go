// Package trace collects lifecycle intervals from a stage and a singleton
// registry. A span covers the time an object was alive, the tenure of a
// singleton slot holder, or the time a scene stayed loaded. Spans go to a
// backend, either a CSV file or a journal recorder.
package trace

import "github.com/sarchlab/torii/stage"

// Span kinds written by the Hook in this package.
const (
	// KindLifetime covers an object from spawn to destruction.
	KindLifetime = "lifetime"

	// KindTenure covers one instance holding a singleton slot, from claim
	// to release or eviction.
	KindTenure = "tenure"

	// KindScene covers a scene from load to unload.
	KindScene = "scene"
)

// A Span is one traced interval.
type Span struct {
	ID    string
	Kind  string
	What  string
	Where string
	Start stage.Uptime
	End   stage.Uptime
}

// A Tracer receives spans. StartSpan delivers a span whose End is not known
// yet. EndSpan delivers the same span again, completed. Tracers that only
// care about finished intervals can ignore StartSpan.
type Tracer interface {
	StartSpan(span Span)
	EndSpan(span Span)
}
