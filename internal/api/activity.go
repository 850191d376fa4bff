package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// ActivityHandler serves the audit log.
type ActivityHandler struct {
	DB *sql.DB
}

// List handles GET /api/activity?limit=&action=&entity_id=.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ActivityFilter{Action: q.Get("action"), EntityID: q.Get("entity_id")}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		f.Limit = n
	}

	entries, err := store.ListActivity(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, err, "failed to list activity")
		return
	}
	if entries == nil {
		entries = []model.Activity{}
	}
	jsonResponse(w, http.StatusOK, entries)
}
