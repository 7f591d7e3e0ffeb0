package handlers

import (
	"net/http"

	"github.com/eargollo/frisk/internal/scheduler"
	"github.com/eargollo/frisk/internal/search"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Engine  *search.Engine
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version    string                `json:"version"`
	Generation uint64                `json:"generation"`
	Running    bool                  `json:"running"`
	Results    int                   `json:"results"`
	LastStats  search.Stats          `json:"last_stats"`
	Schedules  []scheduler.Scheduled `json:"schedules"`
}

// ServeHTTP returns the engine status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:    h.Version,
		Generation: h.Engine.Generation(),
		Running:    h.Engine.Running(),
		Results:    h.Engine.Index().Len(),
		LastStats:  h.Engine.LastStats(),
		Schedules:  []scheduler.Scheduled{},
	}
	if h.Sched != nil {
		resp.Schedules = h.Sched.Jobs()
	}
	writeJSON(w, http.StatusOK, resp)
}
