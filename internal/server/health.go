package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v5"
)

// Health status constants for health check responses.
const (
	healthStatusOK       = "ok"
	healthStatusNotReady = "not ready"
)

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker. The server starts not-ready
// and is flipped ready when the listener comes up.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

// Liveness serves /healthz. Liveness only says the process is running; it
// never depends on downstream collaborators.
func (h *HealthChecker) Liveness(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: healthStatusOK,
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// Readiness serves /readyz. It fails during startup and once shutdown has
// begun so load balancers drain traffic before the listener closes.
func (h *HealthChecker) Readiness(c *echo.Context) error {
	if !h.ready.Load() {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: healthStatusOK})
}
