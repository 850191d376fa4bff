package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/photo"
	"github.com/erazemk/zaloga/internal/store"
)

// itemChecker re-evaluates item conditions after a mutation. Failures are
// logged and never fail the request.
type itemChecker struct {
	Engine *alert.Engine
}

func (c *itemChecker) check(ctx context.Context, id string) {
	if c == nil || c.Engine == nil {
		return
	}
	if _, err := c.Engine.CheckItem(ctx, id); err != nil {
		slog.Warn("item condition check failed", "item", id, "error", err)
	}
}

func (c *itemChecker) engine() *alert.Engine {
	if c == nil {
		return nil
	}
	return c.Engine
}

// forget resolves the open item conditions of a deleted item.
func (c *itemChecker) forget(ctx context.Context, id string, by int64) {
	if c == nil || c.Engine == nil {
		return
	}
	for _, d := range []model.Details{
		model.LowStockDetails{ItemID: id},
		model.OutOfStockDetails{ItemID: id},
		model.NearExpirationDetails{ItemID: id},
	} {
		if _, err := c.Engine.ResolveCondition(ctx, d, &by, "Item deleted"); err != nil {
			slog.Warn("failed to resolve item notifications", "item", id, "error", err)
		}
	}
}

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Checker *itemChecker
	Photo   photo.Options
}

type itemRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity"`
	Status     string `json:"status"`
	Expiration string `json:"expiration"`
	Quality    string `json:"quality"`
}

type adjustQuantityRequest struct {
	Delta int `json:"delta"`
}

func (req itemRequest) input() (store.ItemInput, string) {
	in := store.ItemInput{
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Quantity: req.Quantity,
		Status:   req.Status,
		Quality:  strings.TrimSpace(req.Quality),
	}
	switch {
	case in.Name == "":
		return in, "name required"
	case in.Category == "":
		return in, "category required"
	case in.Quantity < 0:
		return in, "quantity must not be negative"
	}
	switch in.Status {
	case "", model.ItemStatusAvailable, model.ItemStatusLowStock, model.ItemStatusOutOfStock:
	default:
		return in, "invalid status"
	}
	if req.Expiration != "" {
		exp, err := model.ParseDate(req.Expiration)
		if err != nil {
			return in, "expiration must be a YYYY-MM-DD date"
		}
		in.Expiration = &exp
	}
	return in, ""
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(w, err, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, problem := req.input()
	if problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, in, claims.Username)
	if err != nil {
		writeError(w, err, "failed to create item")
		return
	}
	h.Checker.check(r.Context(), item.ID)

	slog.Info("item created", "user", claims.Username, "item", item.ID, "name", item.Name)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, problem := req.input()
	if problem != "" {
		jsonError(w, http.StatusBadRequest, problem)
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateItem(r.Context(), h.DB, id, in, claims.Username); err != nil {
		writeError(w, err, "failed to update item")
		return
	}
	h.Checker.check(r.Context(), id)

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get item")
		return
	}
	slog.Info("item updated", "user", claims.Username, "item", id)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())

	if err := store.DeleteItem(r.Context(), h.DB, id, claims.Username); err != nil {
		writeError(w, err, "failed to delete item")
		return
	}
	h.Checker.forget(r.Context(), id, claims.UserID)

	slog.Info("item deleted", "user", claims.Username, "item", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// AdjustQuantity handles POST /api/items/{id}/quantity with a signed delta.
func (h *ItemsHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req adjustQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		jsonError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	claims := GetClaims(r.Context())
	item, err := store.AdjustQuantity(r.Context(), h.DB, id, req.Delta, claims.Username)
	if err != nil {
		writeError(w, err, "failed to adjust quantity")
		return
	}
	h.Checker.check(r.Context(), id)

	slog.Info("item quantity adjusted", "user", claims.Username, "item", id, "delta", req.Delta, "quantity", item.Quantity)
	jsonResponse(w, http.StatusOK, item)
}

// UploadPhoto handles PUT /api/items/{id}/photo with a multipart "photo" field.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := h.Photo.MaxBytes
	if limit <= 0 {
		limit = photo.DefaultOptions().MaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(limit); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	result, err := photo.Process(file, h.Photo)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetItemPhoto(r.Context(), h.DB, id, result.Photo, result.Thumbnail, result.MIME, claims.Username); err != nil {
		writeError(w, err, "failed to save photo")
		return
	}

	slog.Info("item photo uploaded", "user", claims.Username, "item", id,
		"width", result.Width, "height", result.Height, "bytes", len(result.Photo))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/items/{id}/photo. ?thumb=true returns the thumbnail.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemPhoto(r.Context(), h.DB, r.PathValue("id"), queryBool(r, "thumb"))
	if err != nil {
		writeError(w, err, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
