// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"norelock.dev/fetchx/backend/internal/services/system"
	"norelock.dev/fetchx/backend/internal/utils"
)

// HealthReporter returns the latest health snapshot.
type HealthReporter interface {
	GetHealth(ctx context.Context) system.SystemHealth
}

// HealthHandler handles HTTP requests related to system health.
type HealthHandler struct {
	logger    *utils.Logger
	healthSvc HealthReporter
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(logger *utils.Logger, healthSvc HealthReporter) *HealthHandler {
	return &HealthHandler{
		logger:    logger.Named("health_handler"),
		healthSvc: healthSvc,
		startTime: time.Now(),
	}
}

// Check handles requests to check the health of the system. Degraded
// providers still answer 200; only a down component answers 503.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())

	response := map[string]any{
		"status":     health.Status,
		"version":    health.Version,
		"uptime":     time.Since(h.startTime).String(),
		"components": health.Components,
	}

	utils.RespondWithJSON(w, statusFor(health), response)
}

// DetailedCheck handles requests for detailed health information.
func (h *HealthHandler) DetailedCheck(w http.ResponseWriter, r *http.Request) {
	health := h.healthSvc.GetHealth(r.Context())
	utils.RespondWithJSON(w, statusFor(health), health)
}

func statusFor(health system.SystemHealth) int {
	if health.Status == system.StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
