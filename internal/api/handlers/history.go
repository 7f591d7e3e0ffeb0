package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/eargollo/frisk/internal/history"
)

// HistoryHandler handles GET /api/history.
type HistoryHandler struct {
	DB *sql.DB
}

// List returns recorded search runs newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	runs, err := history.List(r.Context(), h.DB, limit, offset)
	if err != nil {
		slog.Error("history list: query", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	total, err := history.Count(r.Context(), h.DB)
	if err != nil {
		slog.Error("history list: count", "error", err)
	}

	writeJSON(w, http.StatusOK, ListResponse[history.Run]{
		Items:  runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
