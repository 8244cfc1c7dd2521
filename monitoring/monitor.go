// Package monitoring turns a running scenario into a web server that can
// pause, resume and inspect the simulation.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/hybridnet/flowmon"
	"github.com/sarchlab/hybridnet/monitoring/web"
	"github.com/sarchlab/hybridnet/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Engine is the part of the simulation engine the monitor controls.
type Engine interface {
	Pause()
	Continue()
	CurrentTime() sim.VTimeInSec
	StopTime() (sim.VTimeInSec, bool)
	PendingEvents() int
}

// FlowSource provides a snapshot of the flow counters.
type FlowSource interface {
	Statistics() *flowmon.Statistics
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine     Engine
	flows      FlowSource
	scenario   any
	portNumber int

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterFlowSource registers where the flow counters are read from.
func (m *Monitor) RegisterFlowSource(f FlowSource) {
	m.flows = f
}

// RegisterScenario registers the object served by the scenario endpoints.
func (m *Monitor) RegisterScenario(s any) {
	m.scenario = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router serving the API and the web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/flows", m.listFlows)
	r.HandleFunc("/api/scenario", m.serializeScenario)
	r.HandleFunc("/api/scenario/{field}", m.serializeScenario)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", m.portNumber))
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	return url
}

// OpenBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenBrowser(url string) {
	if err := browser.OpenURL(url); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
	}
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Now      float64 `json:"now"`
	Stop     float64 `json:"stop,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Pending  int     `json:"pending"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	rsp := nowRsp{
		Now:     float64(m.engine.CurrentTime()),
		Pending: m.engine.PendingEvents(),
	}

	if stop, ok := m.engine.StopTime(); ok && stop > 0 {
		rsp.Stop = float64(stop)
		rsp.Progress = rsp.Now / rsp.Stop
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
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

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

type flowRsp struct {
	ID          flowmon.FlowID `json:"id"`
	Src         string         `json:"src"`
	Dst         string         `json:"dst"`
	Protocol    string         `json:"protocol"`
	TxPackets   uint32         `json:"tx_packets"`
	RxPackets   uint32         `json:"rx_packets"`
	LostPackets uint32         `json:"lost_packets"`
	RxBytes     uint64         `json:"rx_bytes"`
}

type flowsRsp struct {
	Summary flowmon.Summary `json:"summary"`
	Flows   []flowRsp       `json:"flows"`
}

func (m *Monitor) listFlows(w http.ResponseWriter, _ *http.Request) {
	if m.flows == nil {
		http.Error(w, "flow monitor not registered", http.StatusServiceUnavailable)
		return
	}

	stats := m.flows.Statistics()
	rsp := flowsRsp{
		Summary: flowmon.Summarize(stats),
		Flows:   make([]flowRsp, 0, len(stats.Flows)),
	}

	for _, f := range stats.Flows {
		rsp.Flows = append(rsp.Flows, flowRsp{
			ID:          f.ID,
			Src:         fmt.Sprintf("%s:%d", f.Tuple.Src, f.Tuple.SrcPort),
			Dst:         fmt.Sprintf("%s:%d", f.Tuple.Dst, f.Tuple.DstPort),
			Protocol:    f.Tuple.Protocol.String(),
			TxPackets:   f.Stats.TxPackets,
			RxPackets:   f.Stats.RxPackets,
			LostPackets: f.Stats.LostPackets,
			RxBytes:     f.Stats.RxBytes,
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) serializeScenario(w http.ResponseWriter, r *http.Request) {
	if m.scenario == nil {
		http.Error(w, "scenario not registered", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.scenario)
	serializer.SetMaxDepth(2)

	if field, ok := mux.Vars(r)["field"]; ok {
		err := serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) engineOr503(w http.ResponseWriter) bool {
	if m.engine != nil {
		return true
	}

	http.Error(w, "engine not registered", http.StatusServiceUnavailable)

	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
