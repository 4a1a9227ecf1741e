package journal

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
)

// A RunRecorder writes information about the current process run into the
// run info table.
type RunRecorder struct {
	rec   Recorder
	runID string
}

// NewRunRecorder creates a RunRecorder and the table it writes into.
func NewRunRecorder(rec Recorder) *RunRecorder {
	r := &RunRecorder{
		rec:   rec,
		runID: xid.New().String(),
	}

	rec.CreateTable(RunInfoTable, RunInfoRow{})

	return r
}

// RunID returns the generated ID of this run.
func (r *RunRecorder) RunID() string {
	return r.runID
}

// Start records the run ID, the start time, and how the process was
// launched.
func (r *RunRecorder) Start() {
	now := time.Now().Format("2006-01-02 15:04:05")
	r.rec.InsertData(RunInfoTable, RunInfoRow{"Run ID", r.runID})
	r.rec.InsertData(RunInfoTable, RunInfoRow{"Start Time", now})

	cmd := strings.Join(os.Args, " ")
	r.rec.InsertData(RunInfoTable, RunInfoRow{"Command", cmd})

	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	r.rec.InsertData(RunInfoTable, RunInfoRow{"Path", filepath.Dir(ex)})
}

// End records the end time and flushes the recorder. It is meant to run at
// process exit.
func (r *RunRecorder) End() {
	now := time.Now().Format("2006-01-02 15:04:05")
	r.rec.InsertData(RunInfoTable, RunInfoRow{"End Time", now})

	r.rec.Flush()
}
