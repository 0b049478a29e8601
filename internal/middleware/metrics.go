package middleware

import (
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/render"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// Metrics stores application metrics. It also receives scan lifecycle
// events from the scan service.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	ScansTotal         atomic.Uint64
	ScansRunning       atomic.Int64
	ScansFailed        atomic.Uint64
	StartTime          time.Time

	mu     sync.Mutex
	byKind map[domain.Kind]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now(), byKind: make(map[domain.Kind]uint64)}
}

// ScanStarted increments total and running scans counter
func (m *Metrics) ScanStarted() {
	m.ScansTotal.Add(1)
	m.ScansRunning.Add(1)
}

// ScanFinished decrements running scans; kind is empty on success.
func (m *Metrics) ScanFinished(kind domain.Kind) {
	m.ScansRunning.Add(-1)
	if kind == "" {
		return
	}
	m.ScansFailed.Add(1)
	m.mu.Lock()
	m.byKind[kind]++
	m.mu.Unlock()
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	byKind := make(map[string]uint64, len(m.byKind))
	for k, v := range m.byKind {
		byKind[string(k)] = v
	}
	m.mu.Unlock()

	return map[string]any{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"scans_total":          m.ScansTotal.Load(),
		"scans_running":        m.ScansRunning.Load(),
		"scans_failed":         m.ScansFailed.Load(),
		"scans_failed_by_kind": byKind,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, m.Snapshot())
}
