package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eargollo/frisk/internal/backup"
	"github.com/eargollo/frisk/internal/config"
)

// BackupsHandler lists and restores the backups written by replaces.
type BackupsHandler struct {
	Config *config.Store
}

// ext returns the requested backup extension, or the configured one.
func (h *BackupsHandler) ext(v string) string {
	if v == "" {
		v = h.Config.Get().Search.BackupExtension
	}
	return strings.TrimPrefix(v, ".")
}

// List handles GET /api/backups?root=DIR[&ext=EXT]: the files below DIR that
// have a backup.
func (h *BackupsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	root := q.Get("root")
	if root == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "root is required")
		return
	}
	limit, offset := parsePagination(r)

	files, err := backup.Find(r.Context(), root, h.ext(q.Get("ext")))
	if err != nil {
		slog.Warn("backups list", "root", root, "error", err)
		writeError(w, http.StatusBadRequest, "INVALID_ROOT", err.Error())
		return
	}

	page := []string{}
	if offset < len(files) {
		page = files[offset:min(offset+limit, len(files))]
	}
	writeJSON(w, http.StatusOK, ListResponse[string]{
		Items:  page,
		Total:  len(files),
		Limit:  limit,
		Offset: offset,
	})
}

type restoreRequest struct {
	Paths []string `json:"paths"`
	Ext   string   `json:"ext,omitempty"`
}

type restoreFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type restoreResponse struct {
	Restored []string         `json:"restored"`
	Failed   []restoreFailure `json:"failed"`
}

// Restore handles POST /api/backups/restore. Each path is restored from its
// backup; failures are reported per path.
func (h *BackupsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "paths is required")
		return
	}
	ext := h.ext(req.Ext)

	resp := restoreResponse{Restored: []string{}, Failed: []restoreFailure{}}
	for _, p := range req.Paths {
		if err := backup.Restore(p, ext); err != nil {
			msg := err.Error()
			if errors.Is(err, backup.ErrNoBackup) {
				msg = backup.ErrNoBackup.Error()
			}
			resp.Failed = append(resp.Failed, restoreFailure{Path: p, Error: msg})
			continue
		}
		resp.Restored = append(resp.Restored, p)
	}

	status := http.StatusOK
	if len(resp.Restored) == 0 {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}
