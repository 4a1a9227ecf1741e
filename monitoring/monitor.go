// Package monitoring turns a running stage into a web server, so the stage
// can be inspected and controlled from a browser while it runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/torii/monitoring/web"
	"github.com/sarchlab/torii/singleton"
	"github.com/sarchlab/torii/stage"
)

// Monitor can turn a stage into a server and allows external monitoring and
// controlling of the stage.
//
// The read-only endpoints are safe while a loop is running. The controlling
// endpoints, play, stop, step, and scene loading, mutate the stage and are
// meant to be used while the loop is paused.
type Monitor struct {
	st       *stage.Stage
	registry *singleton.Registry
	loop     *stage.Loop

	portNumber  int
	openBrowser bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes StartServer open the dashboard in the default
// browser.
func (m *Monitor) WithOpenBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterStage registers the stage to be monitored.
func (m *Monitor) RegisterStage(st *stage.Stage) {
	m.st = st
}

// RegisterRegistry registers the singleton registry to be monitored.
func (m *Monitor) RegisterRegistry(r *singleton.Registry) {
	m.registry = r
}

// RegisterLoop registers the loop that drives the stage, enabling the
// pause, continue, and step endpoints.
func (m *Monitor) RegisterLoop(l *stage.Loop) {
	m.loop = l
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/pause", m.pauseLoop)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/step", m.stepLoop)
	r.HandleFunc("/api/play", m.play)
	r.HandleFunc("/api/stop", m.stopPlay)
	r.HandleFunc("/api/scene", m.scene)
	r.HandleFunc("/api/load_scene/{name}", m.loadScene)
	r.HandleFunc("/api/list_objects", m.listObjects)
	r.HandleFunc("/api/object/{name}", m.objectDetails)
	r.HandleFunc("/api/singletons", m.listSingletons)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring stage with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
		}
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%.10f}", m.st.Now())
}

func (m *Monitor) pauseLoop(w http.ResponseWriter, _ *http.Request) {
	if m.loopOr404(w) == nil {
		return
	}

	m.loop.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	if m.loopOr404(w) == nil {
		return
	}

	m.loop.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stepLoop(w http.ResponseWriter, _ *http.Request) {
	if m.loopOr404(w) == nil {
		return
	}

	if !m.loop.Paused() {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, "Pause the loop before stepping")
		return
	}

	m.loop.StepOnce()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) loopOr404(w http.ResponseWriter) *stage.Loop {
	if m.loop == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "No loop registered")
		return nil
	}

	return m.loop
}

func (m *Monitor) play(w http.ResponseWriter, _ *http.Request) {
	m.st.Play()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stopPlay(w http.ResponseWriter, _ *http.Request) {
	m.st.StopPlay()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) scene(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"scene\":%q}", m.st.Scene())
}

func (m *Monitor) loadScene(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.st.LoadScene(name)
	_, err := w.Write(nil)
	dieOnErr(err)
}

type objectRsp struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Scene      string   `json:"scene"`
	Parent     string   `json:"parent,omitempty"`
	Persistent bool     `json:"persistent"`
	Hidden     bool     `json:"hidden"`
	Behaviors  []string `json:"behaviors"`
}

func (m *Monitor) listObjects(w http.ResponseWriter, r *http.Request) {
	objects := m.st.Objects()
	if r.URL.Query().Get("hidden") == "1" {
		objects = append(objects, m.st.HiddenObjects()...)
	}

	rsp := make([]objectRsp, 0, len(objects))
	for _, o := range objects {
		rsp = append(rsp, objectToRsp(o))
	}

	writeJSON(w, rsp)
}

func objectToRsp(o *stage.Object) objectRsp {
	rsp := objectRsp{
		ID:         o.ID(),
		Name:       o.Name(),
		Scene:      o.Scene(),
		Persistent: o.Persistent(),
		Hidden:     o.Flags().Has(stage.Hidden),
	}

	if p := o.Parent(); p != nil {
		rsp.Parent = p.Name()
	}

	for _, b := range o.Behaviors() {
		rsp.Behaviors = append(rsp.Behaviors, fmt.Sprintf("%T", b))
	}

	return rsp
}

func (m *Monitor) objectDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	object := m.findObjectOr404(w, name)
	if object == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(object)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findObjectOr404(
	w http.ResponseWriter,
	name string,
) *stage.Object {
	var object *stage.Object
	for _, o := range m.st.Objects() {
		if o.Name() == name {
			object = o
		}
	}
	for _, o := range m.st.HiddenObjects() {
		if o.Name() == name {
			object = o
		}
	}

	if object == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Object not found"))
		dieOnErr(err)
	}

	return object
}

type singletonRsp struct {
	Type        string  `json:"type"`
	Object      string  `json:"object"`
	ObjectID    string  `json:"object_id"`
	Policy      string  `json:"policy"`
	ClaimedAt   float64 `json:"claimed_at"`
	AutoCreated bool    `json:"auto_created"`
}

func (m *Monitor) listSingletons(w http.ResponseWriter, _ *http.Request) {
	if m.registry == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "No registry registered")
		return
	}

	entries := m.registry.Snapshot()
	rsp := make([]singletonRsp, 0, len(entries))
	for _, e := range entries {
		rsp = append(rsp, singletonRsp{
			Type:        e.Type.String(),
			Object:      e.Owner.Name(),
			ObjectID:    e.Owner.ID(),
			Policy:      e.Policy.String(),
			ClaimedAt:   float64(e.ClaimedAt),
			AutoCreated: e.AutoCreated,
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.st.Stats())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
