package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/eargollo/frisk/internal/history"
)

// StatsHandler handles GET /api/stats.
type StatsHandler struct {
	DB *sql.DB
	// Now defaults to time.Now.
	Now func() time.Time
}

type statsResponse struct {
	Totals    history.Totals `json:"totals"`
	Totals30d history.Totals `json:"totals_30d"`
}

// ServeHTTP returns search totals over all recorded runs and the last 30 days.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	all, err := history.Sum(r.Context(), h.DB, time.Time{})
	if err != nil {
		slog.Error("stats: sum", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	recent, err := history.Sum(r.Context(), h.DB, now().AddDate(0, 0, -30))
	if err != nil {
		slog.Error("stats: sum 30d", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Totals: all, Totals30d: recent})
}
