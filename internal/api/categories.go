package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB      *sql.DB
	Checker *itemChecker
}

type categoryRequest struct {
	Name      string `json:"name"`
	Threshold *int   `json:"threshold"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	cats, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		writeError(w, err, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, cats)
}

// Create handles POST /api/categories. A missing threshold uses the default.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.Threshold != nil && *req.Threshold < 0 {
		jsonError(w, http.StatusBadRequest, "threshold must not be negative")
		return
	}

	existing, err := store.GetCategoryByName(r.Context(), h.DB, req.Name)
	if err != nil {
		writeError(w, err, "failed to create category")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "category already exists")
		return
	}

	claims := GetClaims(r.Context())
	cat, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.Threshold, claims.Username)
	if err != nil {
		writeError(w, err, "failed to create category")
		return
	}

	slog.Info("category created", "user", claims.Username, "category", cat.Name, "threshold", cat.Threshold)
	jsonResponse(w, http.StatusCreated, cat)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	cat, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get category")
		return
	}
	if cat == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}
	jsonResponse(w, http.StatusOK, cat)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Threshold == nil {
		jsonError(w, http.StatusBadRequest, "name and threshold required")
		return
	}
	if *req.Threshold < 0 {
		jsonError(w, http.StatusBadRequest, "threshold must not be negative")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateCategory(r.Context(), h.DB, id, req.Name, *req.Threshold, claims.Username); err != nil {
		writeError(w, err, "failed to update category")
		return
	}
	h.respondRechecked(w, r, id)
}

// SetThreshold handles PUT /api/categories/{id}/threshold.
func (h *CategoriesHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Threshold == nil || *req.Threshold < 0 {
		jsonError(w, http.StatusBadRequest, "non-negative threshold required")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetCategoryThreshold(r.Context(), h.DB, id, *req.Threshold, claims.Username); err != nil {
		writeError(w, err, "failed to set threshold")
		return
	}
	h.respondRechecked(w, r, id)
}

// respondRechecked re-evaluates every item of the category against its new
// threshold and writes the updated category.
func (h *CategoriesHandler) respondRechecked(w http.ResponseWriter, r *http.Request, id int64) {
	cat, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get category")
		return
	}
	if cat == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}
	h.recheck(r.Context(), cat.Name)

	claims := GetClaims(r.Context())
	slog.Info("category updated", "user", claims.Username, "category", cat.Name, "threshold", cat.Threshold)
	jsonResponse(w, http.StatusOK, cat)
}

func (h *CategoriesHandler) recheck(ctx context.Context, category string) {
	items, err := store.ListItems(ctx, h.DB, store.ItemFilter{Category: category})
	if err != nil {
		slog.Warn("failed to list category items", "category", category, "error", err)
		return
	}
	for _, it := range items {
		h.Checker.check(ctx, it.ID)
	}
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.DeleteCategory(r.Context(), h.DB, id, claims.Username); err != nil {
		writeError(w, err, "failed to delete category")
		return
	}

	slog.Info("category deleted", "user", claims.Username, "category_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
