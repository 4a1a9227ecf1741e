package trace

import (
	"sync"

	"github.com/sarchlab/torii/stage"
)

// SpanFilter selects the spans a tracer cares about. It returns true for
// spans that should be counted.
type SpanFilter func(span Span) bool

// KindFilter returns a filter that keeps spans of one kind.
func KindFilter(kind string) SpanFilter {
	return func(span Span) bool {
		return span.Kind == kind
	}
}

// TenureStats accumulates the average duration of finished spans, grouped by
// the span's What. Feeding it tenure spans yields the average time each
// singleton type keeps its slot.
type TenureStats struct {
	filter SpanFilter

	lock        sync.Mutex
	averageTime map[string]stage.Uptime
	spanCount   map[string]uint64
}

// NewTenureStats creates a TenureStats that counts the spans the filter
// keeps. A nil filter keeps tenure spans.
func NewTenureStats(filter SpanFilter) *TenureStats {
	if filter == nil {
		filter = KindFilter(KindTenure)
	}

	return &TenureStats{
		filter:      filter,
		averageTime: make(map[string]stage.Uptime),
		spanCount:   make(map[string]uint64),
	}
}

// AverageTime returns the average duration of the counted spans with the
// given What.
func (t *TenureStats) AverageTime(what string) stage.Uptime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime[what]
}

// TotalCount returns the number of counted spans with the given What.
func (t *TenureStats) TotalCount(what string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.spanCount[what]
}

// Groups returns the What values seen so far.
func (t *TenureStats) Groups() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	groups := make([]string, 0, len(t.spanCount))
	for g := range t.spanCount {
		groups = append(groups, g)
	}

	return groups
}

// StartSpan does nothing. Durations are only known at the end.
func (t *TenureStats) StartSpan(_ Span) {
	// Do nothing
}

// EndSpan folds a finished span into the averages.
func (t *TenureStats) EndSpan(span Span) {
	if !t.filter(span) {
		return
	}

	duration := span.End - span.Start

	t.lock.Lock()
	count := t.spanCount[span.What]
	t.averageTime[span.What] = stage.Uptime(
		(float64(t.averageTime[span.What])*float64(count) +
			float64(duration)) / float64(count+1))
	t.spanCount[span.What] = count + 1
	t.lock.Unlock()
}
