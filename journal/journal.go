// Package journal records lifecycle and singleton events into a database, so
// runs can be inspected after the fact. Data goes through a Recorder, either
// the SQLite one for local files or the ClickHouse one for shared storage,
// and comes back through a Reader.
package journal

// Tables written by the hooks in this package.
const (
	// LifecycleTable holds one row per object or scene lifecycle event.
	LifecycleTable = "lifecycle"

	// SingletonTable holds one row per singleton slot event.
	SingletonTable = "singleton"

	// RunInfoTable holds property and value pairs describing a process run.
	RunInfoTable = "run_info"
)

// LifecycleRow is one recorded lifecycle event.
type LifecycleRow struct {
	Time     float64
	Event    string
	ObjectID string
	Object   string
	Scene    string
	Detail   string
}

// SingletonRow is one recorded singleton slot event.
type SingletonRow struct {
	Time        float64
	Event       string
	Type        string
	Object      string
	Policy      string
	AutoCreated bool
}

// RunInfoRow is one property of a recorded run.
type RunInfoRow struct {
	Property string
	Value    string
}
