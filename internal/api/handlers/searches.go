package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/search"
)

// SearchesHandler handles POST /api/searches and DELETE /api/searches/current.
type SearchesHandler struct {
	Engine *search.Engine
	Config *config.Store
	Start  StartFunc
}

// createRequest is either a full request or the name of a saved search.
type createRequest struct {
	Saved string `json:"saved,omitempty"`
	search.Request
}

// Create starts a search, superseding the running one.
func (h *SearchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := createRequest{}
	cfg := h.Config.Get()
	defaults, err := cfg.NewRequest()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INVALID_CONFIG", err.Error())
		return
	}
	body.Request = defaults
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}

	req := body.Request
	if body.Saved != "" {
		saved, err := cfg.FindSaved(body.Saved)
		if err != nil {
			writeError(w, http.StatusNotFound, "SAVED_SEARCH_NOT_FOUND", err.Error())
			return
		}
		if req, err = saved.Request(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SAVED_SEARCH", err.Error())
			return
		}
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "At least one path is required")
		return
	}
	if req.Match == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "match is required")
		return
	}
	if len(req.Filespecs) == 0 {
		req.Filespecs = []string{"*"}
	}

	gen, err := h.Start(r.Context(), req, "api")
	if err != nil {
		if errors.Is(err, search.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "ENGINE_CLOSED", "The search engine is shutting down")
			return
		}
		slog.Error("searches: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start search")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"generation": gen,
		"status":     search.OutcomeRunning,
		"request":    req,
	})
}

// Cancel stops the running search.
func (h *SearchesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	gen, err := h.Engine.Stop()
	if err != nil {
		if errors.Is(err, search.ErrNoActiveSearch) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SEARCH", "No search is currently running")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": gen,
		"status":     search.OutcomeCancelled,
	})
}
