package handler

import (
	"context"
	"net/http"

	"github.com/forgo/vitals/internal/database"
)

// HealthChecker probes the database
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthStatus
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health handles GET /health. Degraded still answers 200 so load balancers
// keep a slow instance in rotation; unhealthy answers 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.checker.HealthCheck(r.Context())

	code := http.StatusOK
	if status.Status == database.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}
