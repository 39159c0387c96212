// Package health exposes the liveness, readiness and health endpoints.
// Readiness is flipped off during graceful shutdown so load balancers
// drain the instance before the listener closes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jangteo/marketplace/backend/internal/metrics"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the structured health check response
type HealthResponse struct {
	Status            string                   `json:"status"`
	Timestamp         string                   `json:"timestamp"`
	Services          map[string]ServiceStatus `json:"services"`
	StreamConnections *int                     `json:"stream_connections,omitempty"`
	Version           string                   `json:"version,omitempty"`
}

// ConnectionCounter reports how many event stream connections are
// open. *stream.ConnectionManager satisfies it.
type ConnectionCounter interface {
	TotalConnections() int
}

// Config holds health handler configuration
type Config struct {
	DBPool  *pgxpool.Pool
	Streams ConnectionCounter
	Version string
	Timeout time.Duration
}

// Handler handles health check requests
type Handler struct {
	db      *pgxpool.Pool
	streams ConnectionCounter
	version string
	timeout time.Duration
	ready   atomic.Bool
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	h := &Handler{
		db:      cfg.DBPool,
		streams: cfg.Streams,
		version: cfg.Version,
		timeout: cfg.Timeout,
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	return h.ready.Load()
}

// Health reports the database probe, the open stream connection count
// and the build version. Anything short of a healthy database yields
// 503 with status "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	db := h.checkDatabase(ctx)
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: now(),
		Services:  map[string]ServiceStatus{"database": db},
		Version:   h.version,
	}
	if h.streams != nil {
		n := h.streams.TotalConnections()
		response.StreamConnections = &n
	}

	code := http.StatusOK
	if db.Status != "up" {
		response.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

// Readiness answers the load balancer probe: ready only when the
// shutdown flag is unset and the database responds.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := h.IsReady() && h.checkDatabase(ctx).Status == "up"

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready":     ready,
		"timestamp": now(),
	})
}

// Liveness always succeeds while the process serves requests.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"alive":     true,
		"timestamp": now(),
	})
}

// checkDatabase pings through metrics.PingDatabase so probe latency
// lands in the query duration histogram alongside real queries.
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if h.db == nil {
		return ServiceStatus{Status: "down", Error: "database pool not configured"}
	}

	start := time.Now()
	err := metrics.PingDatabase(ctx, h.db)
	status := ServiceStatus{Latency: time.Since(start).String()}
	if err != nil {
		status.Status = "down"
		status.Error = err.Error()
	} else {
		status.Status = "up"
	}
	return status
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
