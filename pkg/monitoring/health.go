package monitoring

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NERVsystems/osmgrid/pkg/version"
)

// Connection states reported by UpdateConnection.
const (
	StatusConnected    = "connected"
	StatusDegraded     = "degraded"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// degradedLatency is the check latency above which a connection counts as
// degraded rather than connected.
const degradedLatency = 5 * time.Second

// Overall service states reported by GetHealth.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// runtimeSampleInterval is how often the Go runtime gauges are refreshed.
const runtimeSampleInterval = 15 * time.Second

// HealthChecker aggregates the connection states reported by
// ConnectionMonitors into one service state and serves it over HTTP.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]ConnStatus

	stop context.CancelFunc
}

// NewHealthChecker starts a checker that also samples runtime gauges until
// Shutdown.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, stop := context.WithCancel(context.Background())
	h := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]ConnStatus),
		stop:        stop,
	}
	sampleRuntime()
	go func() {
		ticker := time.NewTicker(runtimeSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleRuntime()
			}
		}
	}()
	return h
}

// Shutdown stops runtime sampling.
func (h *HealthChecker) Shutdown() {
	h.stop()
}

// UpdateConnection records the latest check result for name.
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	conn := ConnStatus{Status: status, Latency: latencyMs}
	if err != nil {
		conn.LastError = err.Error()
	}
	h.mu.Lock()
	h.connections[name] = conn
	h.mu.Unlock()
}

// RemoveConnection stops reporting name.
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	delete(h.connections, name)
	h.mu.Unlock()
}

// overallStatus is unhealthy when more than half of the connections fail,
// degraded when any fails or is slow, healthy otherwise.
func overallStatus(conns map[string]ConnStatus) (status string, failing, slow int) {
	for _, c := range conns {
		switch c.Status {
		case StatusError, StatusDisconnected:
			failing++
		case StatusDegraded:
			slow++
		}
	}
	switch {
	case failing > len(conns)/2:
		return HealthUnhealthy, failing, slow
	case failing > 0 || slow > 0:
		return HealthDegraded, failing, slow
	}
	return HealthHealthy, failing, slow
}

// GetHealth returns a snapshot of the service state.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	conns := maps.Clone(h.connections)
	h.mu.RUnlock()

	status, failing, slow := overallStatus(conns)
	uptime := time.Since(h.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Connections:   conns,
		Metrics: map[string]any{
			"goroutines":           runtime.NumGoroutine(),
			"memory_alloc_mb":      mem.Alloc >> 20,
			"cpu_count":            runtime.NumCPU(),
			"version_info":         version.Info(),
			"error_connections":    failing,
			"degraded_connections": slow,
		},
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// the status line is already out; an encode failure can only be dropped
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler serves the full ServiceHealth document. Unhealthy maps to
// 503, anything else to 200.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		code := http.StatusOK
		if health.Status == HealthUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadinessHandler reports whether the service can take tool calls.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, _, _ := overallStatus(h.GetHealth().Connections)
		ready := status != HealthUnhealthy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"ready": ready, "status": status})
	}
}

// LivenessHandler always answers 200 while the process serves HTTP.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"alive":  true,
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

// sampleRuntime refreshes the Go runtime gauges and the build info series.
func sampleRuntime() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(mem.Alloc))
	GCRuns.Set(float64(mem.NumGC))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// CheckFunc probes a dependency. It must honour ctx.
type CheckFunc func(ctx context.Context) error

// ConnectionMonitor periodically probes an external dependency (the Overpass
// API, a data provider) and reports the result to a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     CheckFunc
	interval      time.Duration
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	started       atomic.Bool
	done          chan struct{}
}

// NewConnectionMonitor creates a new connection monitor. Each check is
// bounded by the interval.
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc CheckFunc, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		timeout:       interval,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	if cm.started.CompareAndSwap(false, true) {
		go cm.monitor()
	}
}

// Stop stops monitoring and waits for an in-flight check to return.
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	if cm.started.Load() {
		<-cm.done
	}
}

func (cm *ConnectionMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.checkFunc(ctx)
	elapsed := time.Since(start)

	if cm.ctx.Err() != nil {
		// stopped mid-check; keep the last real result
		return
	}

	status := StatusConnected
	switch {
	case err != nil:
		status = StatusError
		RecordError("health_check", cm.name)
	case elapsed > degradedLatency:
		status = StatusDegraded
	}

	cm.healthChecker.UpdateConnection(cm.name, status, elapsed.Milliseconds(), err)
}
