package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/torii/director"
	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted scenario showing the three singleton policies.",
	Long: `demo spawns an audio manager with the persistent policy and a ` +
		`frame logger with the regulator policy, moves through two scenes, ` +
		`and prints every lifecycle event. The run is recorded into a ` +
		`journal database unless --journal is set to "off".`,
	Run: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Bool("monitor", false,
		"Start the monitoring server and keep the stage running")
	demoCmd.Flags().Int("port", 0,
		"Port for the monitoring server (default from TORII_MONITOR_PORT)")
	demoCmd.Flags().Bool("open", false,
		"Open the monitoring dashboard in the browser "+
			"(default from TORII_OPEN_BROWSER)")
	demoCmd.Flags().Float64("rate", 10,
		"Steps per second")
	demoCmd.Flags().String("journal", "",
		"Journal file name, or \"off\" (default from TORII_JOURNAL)")
	demoCmd.Flags().Int("steps", 20,
		"Number of steps to run after the scripted part")
}

// An audioManager survives scene loads. A duplicate from a later scene
// destroys itself.
type audioManager struct {
	singleton.Base
}

func (a *audioManager) SingletonPolicy() singleton.Policy {
	return singleton.PolicyPersistent
}

func (a *audioManager) OnActivate(owner *stage.Object) {
	fmt.Printf("audio manager up on %s\n", owner.Name())
}

// A frameLogger is regulated. The newest spawned logger always wins.
type frameLogger struct {
	singleton.Base
}

func (l *frameLogger) SingletonPolicy() singleton.Policy {
	return singleton.PolicyRegulator
}

func runDemo(cmd *cobra.Command, _ []string) {
	d := buildDirector(cmd)
	defer d.Terminate()

	logger := stage.NewLifecycleLogger(log.New(os.Stdout, "", 0))
	d.Stage().AcceptHook(logger)

	runScript(d)

	steps, _ := cmd.Flags().GetInt("steps")
	for i := 0; i < steps; i++ {
		d.Loop().StepOnce()
	}

	printSummary(d)

	monitorOn, _ := cmd.Flags().GetBool("monitor")
	if monitorOn {
		fmt.Println("Stage keeps running, press Ctrl-C to stop.")
		err := d.Run(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func buildDirector(cmd *cobra.Command) *director.Director {
	rate, _ := cmd.Flags().GetFloat64("rate")

	b := director.MakeBuilder().
		WithManualClock().
		WithStepRate(stage.Rate(rate))

	monitorOn, _ := cmd.Flags().GetBool("monitor")
	if monitorOn {
		if port := monitorPort(cmd); port > 0 {
			b = b.WithMonitorPort(port)
		}
		if openBrowser(cmd) {
			b = b.WithOpenBrowser()
		}
	} else {
		b = b.WithoutMonitoring()
	}

	journalPath, _ := cmd.Flags().GetString("journal")
	if journalPath == "" {
		journalPath = os.Getenv("TORII_JOURNAL")
	}
	switch journalPath {
	case "off":
		b = b.WithoutJournal().WithoutTracing()
	case "":
	default:
		b = b.WithJournalPath(journalPath)
	}

	return b.Build()
}

func monitorPort(cmd *cobra.Command) int {
	port, _ := cmd.Flags().GetInt("port")
	if port != 0 {
		return port
	}

	port, _ = strconv.Atoi(os.Getenv("TORII_MONITOR_PORT"))

	return port
}

func openBrowser(cmd *cobra.Command) bool {
	open, _ := cmd.Flags().GetBool("open")
	if open {
		return true
	}

	ev := os.Getenv("TORII_OPEN_BROWSER")

	return ev == "true" || ev == "1"
}

// runScript walks the stage through the scripted part of the demo: each
// policy gets a duplicate so its reconciliation shows in the log.
func runScript(d *director.Director) {
	st := d.Stage()

	st.Spawn("audio", stage.WithBehaviors(&audioManager{}))
	st.Spawn("logger 1", stage.WithBehaviors(&frameLogger{}))

	d.Play()
	d.Loop().StepOnce()

	st.LoadScene("level1")

	// The persistent audio manager is already there, so this one loses.
	st.Spawn("audio 2", stage.WithBehaviors(&audioManager{}))

	// The regulator goes the other way around, the newcomer wins.
	st.Spawn("logger 2", stage.WithBehaviors(&frameLogger{}))

	d.Loop().StepOnce()
}

func printSummary(d *director.Director) {
	stats := d.Stage().Stats()
	fmt.Printf("scene %s, %d live objects, %d spawned, %d destroyed\n",
		stats.Scene, stats.Live, stats.Spawned, stats.Destroyed)

	for _, e := range d.Registry().Snapshot() {
		fmt.Printf("slot %s -> %s (%s, claimed at %.10f)\n",
			e.Type, e.Owner.Name(), e.Policy, e.ClaimedAt)
	}
}
