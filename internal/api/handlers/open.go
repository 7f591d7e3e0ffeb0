package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/editor"
	"github.com/eargollo/frisk/internal/search"
)

// OpenHandler handles POST /api/open.
type OpenHandler struct {
	Engine *search.Engine
	Config *config.Store
	// Launch defaults to editor.Launch.
	Launch func(tmpl, path string, line int) error
}

type openRequest struct {
	Offset *int64 `json:"offset,omitempty"`
	Path   string `json:"path,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// ServeHTTP opens a result in the configured editor. The target is given by
// output offset, or by path and line; either way it must be a line of the
// current results.
func (h *OpenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body openRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}

	var (
		entry search.Entry
		ok    bool
	)
	if body.Offset != nil {
		entry, ok = h.Engine.Lookup(*body.Offset)
	} else {
		entry, ok = h.find(body.Path, body.Line)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No such line in the current results")
		return
	}

	launch := h.Launch
	if launch == nil {
		launch = editor.Launch
	}
	if err := launch(h.Config.Get().Search.CmdTemplate, entry.Path, entry.Line); err != nil {
		if errors.Is(err, editor.ErrEmptyTemplate) {
			writeError(w, http.StatusBadRequest, "NO_COMMAND_TEMPLATE", err.Error())
			return
		}
		slog.Error("open: launch editor", "path", entry.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"path": entry.Path, "line": entry.Line})
}

func (h *OpenHandler) find(path string, line int) (found search.Entry, ok bool) {
	if path == "" {
		return found, false
	}
	h.Engine.Index().View(func(entries []search.Entry) {
		for _, e := range entries {
			if e.Path == path && (line == 0 || e.Line == line) {
				found, ok = e, true
				return
			}
		}
	})
	return found, ok
}
