package director

import (
	"github.com/rs/xid"

	"github.com/sarchlab/torii/journal"
	"github.com/sarchlab/torii/monitoring"
	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
	"github.com/sarchlab/torii/trace"
)

// Builder can be used to build a director.
type Builder struct {
	stepRate    stage.Rate
	manualClock bool
	scene       string

	monitorOn   bool
	monitorPort int
	openBrowser bool

	journalOn     bool
	journalPath   string
	clickHouseOpt *journal.ClickHouseOptions

	tracingOn    bool
	csvTracePath string
}

// MakeBuilder creates a new builder with the default parameters.
func MakeBuilder() Builder {
	return Builder{
		stepRate:  60 * stage.Hz,
		scene:     "main",
		monitorOn: true,
		journalOn: true,
		tracingOn: true,
	}
}

// WithStepRate sets how often the loop steps the stage.
func (b Builder) WithStepRate(r stage.Rate) Builder {
	b.stepRate = r
	return b
}

// WithManualClock makes stage time advance by one period per step instead
// of following the wall clock.
func (b Builder) WithManualClock() Builder {
	b.manualClock = true
	return b
}

// WithScene sets the name of the initially loaded scene.
func (b Builder) WithScene(name string) Builder {
	b.scene = name
	return b
}

// WithoutMonitoring sets the director to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOpenBrowser makes the monitor open the dashboard in the default
// browser when the server starts.
func (b Builder) WithOpenBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutJournal sets the director to not record lifecycle events.
func (b Builder) WithoutJournal() Builder {
	b.journalOn = false
	return b
}

// WithJournalPath sets the custom output file name for the journal.
func (b Builder) WithJournalPath(path string) Builder {
	b.journalPath = path
	return b
}

// WithClickHouseJournal makes the journal record into a ClickHouse server
// instead of a local SQLite file.
func (b Builder) WithClickHouseJournal(opt journal.ClickHouseOptions) Builder {
	b.clickHouseOpt = &opt
	return b
}

// WithoutTracing sets the director to not collect spans.
func (b Builder) WithoutTracing() Builder {
	b.tracingOn = false
	return b
}

// WithCSVTrace makes spans go to a CSV file instead of the journal.
func (b Builder) WithCSVTrace(path string) Builder {
	b.csvTracePath = path
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if !b.journalOn && b.journalPath != "" {
		panic("journal path cannot be set when the journal is disabled")
	}

	if !b.journalOn && b.clickHouseOpt != nil {
		panic("ClickHouse cannot be used when the journal is disabled")
	}

	if b.journalPath != "" && b.clickHouseOpt != nil {
		panic("journal path and ClickHouse cannot both be set")
	}

	if !b.tracingOn && b.csvTracePath != "" {
		panic("CSV trace path cannot be set when tracing is disabled")
	}

	if b.tracingOn && b.csvTracePath == "" && !b.journalOn {
		panic("tracing needs either a CSV path or the journal")
	}

	// The ClickHouse recorder only accepts the journal's own row types.
	if b.tracingOn && b.csvTracePath == "" && b.clickHouseOpt != nil {
		panic("tracing over a ClickHouse journal needs a CSV path")
	}
}

// Build builds the director.
func (b Builder) Build() *Director {
	b.parametersMustBeValid()

	d := &Director{id: xid.New().String()}

	b.buildStage(d)
	b.buildJournal(d)
	b.buildTracing(d)
	b.buildMonitor(d)

	return d
}

func (b Builder) buildStage(d *Director) {
	opts := []stage.Option{stage.WithScene(b.scene)}
	if b.manualClock {
		opts = append(opts, stage.WithClock(stage.NewManualClock()))
	}

	d.st = stage.NewStage(opts...)
	d.registry = singleton.NewRegistry(d.st)
	d.loop = stage.NewLoop(d.st, b.stepRate)
}

func (b Builder) buildJournal(d *Director) {
	if !b.journalOn {
		return
	}

	if b.clickHouseOpt != nil {
		d.recorder = journal.NewClickHouseRecorder(*b.clickHouseOpt)
	} else {
		path := b.journalPath
		if path == "" {
			path = "torii_journal_" + d.id
		}
		d.recorder = journal.New(path)
	}

	hook := journal.NewHook(d.recorder)
	d.st.AcceptHook(hook)
	d.registry.AcceptHook(hook)

	d.runRecorder = journal.NewRunRecorder(d.recorder)
	d.runRecorder.Start()
}

func (b Builder) buildTracing(d *Director) {
	if !b.tracingOn {
		return
	}

	var backend trace.Tracer
	if b.csvTracePath != "" {
		backend = trace.NewCSVTracer(b.csvTracePath)
	} else {
		backend = trace.NewRecorderTracer(d.recorder)
	}

	d.tenureStats = trace.NewTenureStats(nil)

	hook := trace.NewHook(multiTracer{backend, d.tenureStats})
	d.st.AcceptHook(hook)
	d.registry.AcceptHook(hook)
}

func (b Builder) buildMonitor(d *Director) {
	if !b.monitorOn {
		return
	}

	d.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		d.monitor.WithPortNumber(b.monitorPort)
	}
	if b.openBrowser {
		d.monitor.WithOpenBrowser()
	}

	d.monitor.RegisterStage(d.st)
	d.monitor.RegisterRegistry(d.registry)
	d.monitor.RegisterLoop(d.loop)
	d.monitor.StartServer()
}

// multiTracer fans spans out to several tracers.
type multiTracer []trace.Tracer

func (m multiTracer) StartSpan(span trace.Span) {
	for _, t := range m {
		t.StartSpan(span)
	}
}

func (m multiTracer) EndSpan(span trace.Span) {
	for _, t := range m {
		t.EndSpan(span)
	}
}
