package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the health-check and pipeline status endpoints.
type StatusHandler struct {
	mode    string
	symbols []string
	started time.Time
}

// NewStatusHandler creates a StatusHandler for the given operating mode and
// symbol universe.
func NewStatusHandler(mode string, symbols []string) *StatusHandler {
	return &StatusHandler{
		mode:    mode,
		symbols: symbols,
		started: time.Now().UTC(),
	}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus responds with the operating mode, symbol universe, and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"symbols":        h.symbols,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
