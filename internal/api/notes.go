package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// NotesHandler handles the caller's own notes.
type NotesHandler struct {
	DB *sql.DB
}

type noteRequest struct {
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

func (req *noteRequest) validate() string {
	req.Content = strings.TrimSpace(req.Content)
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	switch {
	case req.Content == "":
		return "content required"
	case !model.ValidPriority(req.Priority):
		return "priority must be low, medium, or high"
	}
	return ""
}

// List handles GET /api/notes?sort=newest|oldest|priority.
func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	if sort != "" && !store.ValidNoteSort(sort) {
		jsonError(w, http.StatusBadRequest, "sort must be newest, oldest, or priority")
		return
	}

	claims := GetClaims(r.Context())
	notes, err := store.ListNotes(r.Context(), h.DB, claims.UserID, sort)
	if err != nil {
		writeError(w, err, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	jsonResponse(w, http.StatusOK, notes)
}

// Create handles POST /api/notes.
func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if problem := req.validate(); problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	claims := GetClaims(r.Context())
	note, err := store.CreateNote(r.Context(), h.DB, claims.UserID, req.Content, req.Priority, claims.Username)
	if err != nil {
		writeError(w, err, "failed to create note")
		return
	}

	slog.Info("note created", "user", claims.Username, "note", note.ID)
	jsonResponse(w, http.StatusCreated, note)
}

// Update handles PUT /api/notes/{id}.
func (h *NotesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if problem := req.validate(); problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateNote(r.Context(), h.DB, id, claims.UserID, req.Content, req.Priority, claims.Username); err != nil {
		writeError(w, err, "failed to update note")
		return
	}

	note, err := store.GetNote(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get note")
		return
	}
	slog.Info("note updated", "user", claims.Username, "note", id)
	jsonResponse(w, http.StatusOK, note)
}

// Delete handles DELETE /api/notes/{id}.
func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.DeleteNote(r.Context(), h.DB, id, claims.UserID, claims.Username); err != nil {
		writeError(w, err, "failed to delete note")
		return
	}

	slog.Info("note deleted", "user", claims.Username, "note", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "note deleted"})
}
