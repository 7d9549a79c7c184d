package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// HealthCheckTimeout is the maximum time allowed for store health checks.
const HealthCheckTimeout = 5 * time.Second

// NamedStore is a configured extent store.
type NamedStore struct {
	Name  string
	Type  string
	Store extent.Store
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	registry  *disk.Registry
	stores    []NamedStore
	startTime time.Time
}

// NewHealthHandler creates a new health handler. registry may be nil, in
// which case readiness reports unhealthy.
func NewHealthHandler(registry *disk.Registry, stores []NamedStore) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		stores:    stores,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "dittoblk",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. Returns 200 OK once the registry is
// initialized.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"disks":   len(h.registry.Disks()),
		"volumes": len(h.registry.Volumes()),
		"stores":  len(h.stores),
	}))
}

// StoreHealth represents the health status of a single store.
type StoreHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Stores handles GET /health/stores. Returns 200 OK if every extent store
// answers its health check, 503 Service Unavailable otherwise.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	results := make([]StoreHealth, 0, len(h.stores))
	allHealthy := true

	for _, s := range h.stores {
		start := time.Now()
		err := s.Store.HealthCheck(ctx)
		health := StoreHealth{
			Name:    s.Name,
			Type:    s.Type,
			Latency: time.Since(start).String(),
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}
		results = append(results, health)
	}

	if allHealthy {
		WriteJSON(w, http.StatusOK, healthyResponse(results))
	} else {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(results))
	}
}
