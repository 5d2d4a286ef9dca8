// Package monitoring serves a web page and a JSON API for inspecting and
// driving caches while a trace is replayed.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/rocache/logging"
	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/monitoring/web"
)

// A Cache is a cache that can be inspected and driven by the monitor.
type Cache interface {
	Name() string
	Access(address uint64) (cache.AccessRecord, error)
	Snapshot() cache.Snapshot
}

// Monitor turns a set of caches into a web server.
type Monitor struct {
	logger     zerolog.Logger
	portNumber int

	lock   sync.Mutex
	caches []Cache
	server *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	profileDuration time.Duration
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:          logging.NewLogger("monitor"),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("port number not allowed, using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterCache registers a cache to be monitored.
func (m *Monitor) RegisterCache(c Cache) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, existing := range m.caches {
		if existing.Name() == c.Name() {
			panic(fmt.Sprintf("cache %s already registered", c.Name()))
		}
	}

	m.caches = append(m.caches, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
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

// Router returns the handler that serves the API and the web page.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_components", m.listComponents).
		Methods(http.MethodGet)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails).
		Methods(http.MethodGet)
	r.HandleFunc("/api/cache/{name}/sets", m.listSets).
		Methods(http.MethodGet)
	r.HandleFunc("/api/cache/{name}/load/{address}", m.load).
		Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars).
		Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).
		Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).
		Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server in the background and
// returns the address that it listens on.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.lock.Lock()
	m.server = server
	m.lock.Unlock()

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	m.logger.Info().Str("address", addr).Msg("monitoring caches")

	return addr, nil
}

// StopServer stops the server started by StartServer.
func (m *Monitor) StopServer() error {
	m.lock.Lock()
	server := m.server
	m.server = nil
	m.lock.Unlock()

	if server == nil {
		return nil
	}

	return server.Close()
}

// OpenInBrowser opens the monitor page in the default browser.
func OpenInBrowser(addr string) error {
	return browser.OpenURL(addr)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.caches))
	for _, c := range m.caches {
		names = append(names, c.Name())
	}
	m.lock.Unlock()

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	// The cache itself holds the memory and the hooks, which may be
	// functions that cannot be serialized.
	snapshot := c.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(3)

	err := serializer.Serialize(w)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to serialize cache")
	}
}

func (m *Monitor) listSets(w http.ResponseWriter, r *http.Request) {
	c := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	m.writeJSON(w, c.Snapshot())
}

type loadRsp struct {
	Address uint64 `json:"address"`
	Value   uint8  `json:"value"`
	Hit     bool   `json:"hit"`
	SetID   int    `json:"set_id"`
	WayID   int    `json:"way_id"`
}

func (m *Monitor) load(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	c := m.findCacheOr404(w, vars["name"])
	if c == nil {
		return
	}

	address, err := strconv.ParseUint(vars["address"], 0, 64)
	if err != nil {
		http.Error(w, "invalid address: "+vars["address"],
			http.StatusBadRequest)
		return
	}

	record, err := c.Access(address)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	m.writeJSON(w, loadRsp{
		Address: address,
		Value:   record.Value,
		Hit:     record.Hit,
		SetID:   record.SetID,
		WayID:   record.WayID,
	})
}

func (m *Monitor) findCacheOr404(w http.ResponseWriter, name string) Cache {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, c := range m.caches {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to write response")
	}
}
