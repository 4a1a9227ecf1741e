package trace

import (
	"fmt"
	"os"
	"sync"

	"github.com/tebeka/atexit"
)

// CSVTracer stores finished spans in a CSV file.
type CSVTracer struct {
	path string
	file *os.File

	mu         sync.Mutex
	spans      []Span
	bufferSize int
}

// NewCSVTracer creates a CSVTracer writing to the file at path. If the file
// already exists, it will be overwritten. The file flushes at process exit.
func NewCSVTracer(path string) *CSVTracer {
	t := &CSVTracer{
		path:       path,
		bufferSize: 1000,
	}

	t.init()

	atexit.Register(func() {
		t.Flush()

		err := t.file.Close()
		if err != nil {
			panic(err)
		}
	})

	return t
}

func (t *CSVTracer) init() {
	file, err := os.Create(t.path)
	if err != nil {
		panic(err)
	}
	t.file = file

	fmt.Fprintf(file, "ID, Kind, What, Where, Start, End\n")
}

// StartSpan does nothing. Only finished spans are written.
func (t *CSVTracer) StartSpan(_ Span) {
	// Do nothing
}

// EndSpan buffers a finished span for writing.
func (t *CSVTracer) EndSpan(span Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spans = append(t.spans, span)
	if len(t.spans) >= t.bufferSize {
		t.flushLocked()
	}
}

// Flush writes the buffered spans to the file.
func (t *CSVTracer) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushLocked()
}

func (t *CSVTracer) flushLocked() {
	for _, span := range t.spans {
		fmt.Fprintf(t.file, "%s, %s, %s, %s, %.10f, %.10f\n",
			span.ID,
			span.Kind,
			span.What,
			span.Where,
			span.Start,
			span.End,
		)
	}

	t.spans = nil
}
