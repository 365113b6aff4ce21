package api

import (
	"net/http"

	service "github.com/okian/signal-gateway/internal/app"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() service.Stats
}

// StatusHandler handles status requests.
type StatusHandler struct {
	statsProvider StatsProvider
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(statsProvider StatsProvider) *StatusHandler {
	return &StatusHandler{statsProvider: statsProvider}
}

// HandleStatus handles GET /api/status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.statsProvider.GetStats())
}
