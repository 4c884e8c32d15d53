package handler

import (
	"context"
	"net/http"
	"time"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks map[string]ReadinessCheck
}

// NewHealthHandler creates a HealthHandler running checks on /ready.
func NewHealthHandler(checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health is a simple liveness probe.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is a readiness probe that checks dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := map[string]string{"status": "ready"}
	status := http.StatusOK

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			response["status"] = "not_ready"
			response[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		response[name] = "ok"
	}

	writeJSON(w, status, response)
}
