package handlers

import (
	"net/http"
	"strconv"

	"github.com/eargollo/frisk/internal/search"
)

// ResultsHandler serves the result index of the current search.
type ResultsHandler struct {
	Engine *search.Engine
}

type resultItem struct {
	search.Entry
	Text string `json:"text"`
}

// List handles GET /api/results, a page of reported lines in output order.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	items := []resultItem{}
	total := 0
	h.Engine.Index().View(func(entries []search.Entry) {
		total = len(entries)
		if offset >= total {
			return
		}
		for _, e := range entries[offset:min(offset+limit, total)] {
			items = append(items, resultItem{Entry: e, Text: e.Text()})
		}
	})

	writeJSON(w, http.StatusOK, ListResponse[resultItem]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Lookup handles GET /api/results/lookup?offset=N: the line rendered at
// byte offset N of the output stream.
func (h *ResultsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_OFFSET", "offset must be a non-negative integer")
		return
	}
	entry, ok := h.Engine.Lookup(offset)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No result at this offset")
		return
	}
	writeJSON(w, http.StatusOK, resultItem{Entry: entry, Text: entry.Text()})
}
