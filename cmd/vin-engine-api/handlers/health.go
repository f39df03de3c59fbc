package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose connectivity /ready can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	service string
	version string
	cache   Pinger
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(service, version string, cache Pinger) *HealthHandler {
	return &HealthHandler{service: service, version: version, cache: cache}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.service,
		"version": h.version,
	})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.cache.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache unavailable", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
