package trace

import "github.com/sarchlab/torii/journal"

// SpanTable is the journal table finished spans are written into.
const SpanTable = "trace_spans"

// SpanRow is the journal row shape of a finished span.
type SpanRow struct {
	ID    string
	Kind  string
	What  string
	Where string
	Start float64
	End   float64
}

// RecorderTracer stores finished spans through a journal recorder, next to
// the lifecycle tables, so one database describes the whole run.
type RecorderTracer struct {
	rec journal.Recorder
}

// NewRecorderTracer creates a RecorderTracer and the table it writes into.
func NewRecorderTracer(rec journal.Recorder) *RecorderTracer {
	rec.CreateTable(SpanTable, SpanRow{})

	return &RecorderTracer{rec: rec}
}

// StartSpan does nothing. Only finished spans are recorded.
func (t *RecorderTracer) StartSpan(_ Span) {
	// Do nothing
}

// EndSpan records a finished span.
func (t *RecorderTracer) EndSpan(span Span) {
	t.rec.InsertData(SpanTable, SpanRow{
		ID:    span.ID,
		Kind:  span.Kind,
		What:  span.What,
		Where: span.Where,
		Start: float64(span.Start),
		End:   float64(span.End),
	})
}
