package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/probsync/probsync/internal/kv"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store     kv.Store
	startTime time.Time
	mu        sync.RWMutex
	ready     bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store kv.Store) *HealthHandler {
	return &HealthHandler{
		store:     store,
		startTime: time.Now(),
		ready:     false,
	}
}

// SetReady marks the service as ready
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the ready status
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles the /healthz endpoint (liveness probe)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HandleReady handles the /readyz endpoint (readiness probe). The
// store must answer a ping for the service to be ready; the protocol
// cannot make progress without it.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	allHealthy := true

	if !h.IsReady() {
		checks["startup"] = "not ready"
		allHealthy = false
	} else {
		checks["startup"] = "ok"
	}

	if err := h.store.Ping(r.Context()); err != nil {
		checks["kv"] = err.Error()
		allHealthy = false
	} else {
		checks["kv"] = "ok"
	}

	status := "ready"
	code := http.StatusOK
	if !allHealthy {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}
