package api

import (
	"net/http"

	"github.com/malwarebo/condopay/monitoring"
	"github.com/malwarebo/condopay/utils"
)

type MetricsResponse struct {
	System  map[string]float64            `json:"system"`
	Metrics map[string]*monitoring.Metric `json:"metrics"`
}

type HealthHandler struct {
	health *monitoring.HealthService
}

func CreateHealthHandler(health *monitoring.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.health.GetHealth(r.Context())

	status := http.StatusOK
	if health.Status == monitoring.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	utils.WriteJSON(w, status, utils.Envelope{
		Success: health.Status != monitoring.Unhealthy,
		Data:    health,
	})
}

func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsResponse{
		System:  monitoring.GetSystemMetrics(),
		Metrics: monitoring.GetAllMetrics(),
	})
}
