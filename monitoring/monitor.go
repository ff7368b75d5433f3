// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/hmcsim/hmc"
	"github.com/sarchlab/hmcsim/monitoring/web"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Simulation is what the monitor watches. The simulator is one.
type Simulation interface {
	Name() string
	Now() uint64
	Links() []hmc.LinkStatus
	Vaults() []hmc.VaultStatus
	Buffers() []hmc.Buffer
}

// A Component is anything with a name whose fields can be browsed.
type Component interface {
	Name() string
}

// Monitor can turn a simulation into a server and allows external monitoring
// and pausing of the simulation.
type Monitor struct {
	sim        Simulation
	components []Component
	portNumber int

	// lock is held while the simulation advances and while handlers read
	// from it.
	lock   sync.Mutex
	paused bool
	resume *sync.Cond

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	m := &Monitor{}
	m.resume = sync.NewCond(&m.lock)

	return m
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

// RegisterSimulation sets the simulation to watch. The simulation is also
// registered as a component.
func (m *Monitor) RegisterSimulation(s Simulation) {
	m.sim = s
	m.RegisterComponent(s)
}

// RegisterComponent registers a component to be browsed.
func (m *Monitor) RegisterComponent(c Component) {
	m.components = append(m.components, c)
}

// Step runs f, which advances the simulation, unless the monitor is paused.
// While paused, Step blocks until the simulation is continued.
func (m *Monitor) Step(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for m.paused {
		m.resume.Wait()
	}

	f()
}

// Pause stops the simulation at the next Step.
func (m *Monitor) Pause() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.paused = true
}

// Continue lets a paused simulation run again.
func (m *Monitor) Continue() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.paused = false
	m.resume.Broadcast()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the webpage.
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

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseSimulation)
	r.HandleFunc("/api/continue", m.continueSimulation)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/links", m.listLinks)
	r.HandleFunc("/api/vaults", m.listVaults)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/hangdetector/buffers", m.hangDetectorBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("cannot start monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Handler())
		dieOnErr(err)
	}()

	return url, nil
}

func (m *Monitor) pauseSimulation(w http.ResponseWriter, _ *http.Request) {
	m.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueSimulation(w http.ResponseWriter, _ *http.Request) {
	m.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Name   string `json:"name"`
	Now    uint64 `json:"now"`
	Paused bool   `json:"paused"`
}

// read runs f while the simulation is not advancing.
func (m *Monitor) read(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{}

	m.read(func() {
		rsp.Name = m.sim.Name()
		rsp.Now = m.sim.Now()
		rsp.Paused = m.paused
	})

	writeJSON(w, rsp)
}

func (m *Monitor) listLinks(w http.ResponseWriter, _ *http.Request) {
	var links []hmc.LinkStatus

	m.read(func() { links = m.sim.Links() })

	writeJSON(w, links)
}

func (m *Monitor) listVaults(w http.ResponseWriter, _ *http.Request) {
	var vaults []hmc.VaultStatus

	m.read(func() { vaults = m.sim.Vaults() })

	writeJSON(w, vaults)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.read(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.Serialize(w))
	})
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.read(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)

			return
		}

		dieOnErr(serializer.Serialize(w))
	})
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) hangDetectorBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	var buffers []hmc.Buffer

	m.read(func() {
		buffers = sortAndSelectBuffers(m.sim.Buffers(), sortMethod, limit, offset)
	})

	rsp := make([]bufferRsp, 0, len(buffers))
	for _, b := range buffers {
		rsp = append(rsp, bufferRsp{b.Name(), b.Size(), b.Capacity()})
	}

	writeJSON(w, rsp)
}

func buffersParseParams(r *http.Request) (
	sortMethod string,
	limit, offset int,
	err error,
) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, errors.New("invalid sort method: " + sortMethod +
			". Allowed values are `level` and `percent`")
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}

	return n, nil
}

func bufferPercent(b hmc.Buffer) float64 {
	if b.Capacity() == 0 {
		return 0
	}

	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers from the fullest and returns the
// window [offset, offset+limit). A limit of 0 means no limit.
func sortAndSelectBuffers(
	buffers []hmc.Buffer,
	sortMethod string,
	limit, offset int,
) []hmc.Buffer {
	sorted := make([]hmc.Buffer, len(buffers))
	copy(sorted, buffers)

	byLevel := func(i, j int) (bool, bool) {
		si, sj := sorted[i].Size(), sorted[j].Size()
		return si > sj, si != sj
	}

	byPercent := func(i, j int) (bool, bool) {
		pi, pj := bufferPercent(sorted[i]), bufferPercent(sorted[j])
		return pi > pj, pi != pj
	}

	first, second := byPercent, byLevel
	if sortMethod == "level" {
		first, second = byLevel, byPercent
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if less, decided := first(i, j); decided {
			return less
		}

		less, _ := second(i, j)

		return less
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
