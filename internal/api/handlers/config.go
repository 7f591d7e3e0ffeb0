package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"

	"github.com/eargollo/frisk/internal/config"
)

// ConfigHandler handles /api/config and the saved search endpoints.
type ConfigHandler struct {
	Config *config.Store
}

// Get handles GET /api/config.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config.Get())
}

// ListSaved handles GET /api/saved.
func (h *ConfigHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	saved := h.Config.Get().SavedSearches
	if saved == nil {
		saved = []config.SavedSearch{}
	}
	writeJSON(w, http.StatusOK, saved)
}

// PutSaved handles PUT /api/saved/{name}, creating or replacing a preset.
func (h *ConfigHandler) PutSaved(w http.ResponseWriter, r *http.Request) {
	var s config.SavedSearch
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}
	s.Name = chi.URLParam(r, "name")
	if s.Path == "" || s.Match == "" {
		writeError(w, http.StatusBadRequest, "INVALID_SAVED_SEARCH", "path and match are required")
		return
	}
	if s.Schedule != "" {
		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
			return
		}
	}
	if s.FileSize != "" {
		if _, err := config.ParseSize(s.FileSize); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SAVED_SEARCH", err.Error())
			return
		}
	}

	err := h.Config.Update(func(c *config.Config) error {
		c.PutSaved(s)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSaved handles DELETE /api/saved/{name}.
func (h *ConfigHandler) DeleteSaved(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.Config.Update(func(c *config.Config) error {
		return c.DeleteSaved(name)
	})
	if errors.Is(err, config.ErrSavedNotFound) {
		writeError(w, http.StatusNotFound, "SAVED_SEARCH_NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
