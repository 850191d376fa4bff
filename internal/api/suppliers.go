package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// SuppliersHandler handles supplier endpoints.
type SuppliersHandler struct {
	DB *sql.DB
}

type supplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (req supplierRequest) input() (store.SupplierInput, string) {
	in := store.SupplierInput{
		Name:    strings.TrimSpace(req.Name),
		Contact: strings.TrimSpace(req.Contact),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}
	switch {
	case in.Name == "" || in.Contact == "" || in.Email == "":
		return in, "name, contact, and email required"
	case !model.ValidEmail(in.Email):
		return in, "invalid email address"
	}
	return in, ""
}

// List handles GET /api/suppliers.
func (h *SuppliersHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := store.ListSuppliers(r.Context(), h.DB, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err, "failed to list suppliers")
		return
	}
	if suppliers == nil {
		suppliers = []model.Supplier{}
	}
	jsonResponse(w, http.StatusOK, suppliers)
}

// Create handles POST /api/suppliers.
func (h *SuppliersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
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
	s, err := store.CreateSupplier(r.Context(), h.DB, in, claims.Username)
	if err != nil {
		writeError(w, err, "failed to create supplier")
		return
	}

	slog.Info("supplier created", "user", claims.Username, "supplier", s.ID, "name", s.Name)
	jsonResponse(w, http.StatusCreated, s)
}

// Get handles GET /api/suppliers/{id}.
func (h *SuppliersHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := store.GetSupplier(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "failed to get supplier")
		return
	}
	if s == nil {
		jsonError(w, http.StatusNotFound, "supplier not found")
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Update handles PUT /api/suppliers/{id}.
func (h *SuppliersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req supplierRequest
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
	if err := store.UpdateSupplier(r.Context(), h.DB, id, in, claims.Username); err != nil {
		writeError(w, err, "failed to update supplier")
		return
	}

	s, err := store.GetSupplier(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get supplier")
		return
	}
	slog.Info("supplier updated", "user", claims.Username, "supplier", id)
	jsonResponse(w, http.StatusOK, s)
}

// Delete handles DELETE /api/suppliers/{id}.
func (h *SuppliersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims := GetClaims(r.Context())

	if err := store.DeleteSupplier(r.Context(), h.DB, id, claims.Username); err != nil {
		writeError(w, err, "failed to delete supplier")
		return
	}

	slog.Info("supplier deleted", "user", claims.Username, "supplier", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "supplier deleted"})
}
