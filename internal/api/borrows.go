package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// BorrowsHandler handles borrow and return endpoints.
type BorrowsHandler struct {
	DB      *sql.DB
	Checker *itemChecker
	// Now is the clock used to reject due dates in the past.
	Now func() time.Time
}

type borrowRequest struct {
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	Borrower   string `json:"borrower"`
	Department string `json:"department"`
	DueDate    string `json:"due_date"`
}

// List handles GET /api/borrows.
func (h *BorrowsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	borrows, err := store.ListBorrows(r.Context(), h.DB, store.BorrowFilter{
		Status: q.Get("status"),
		ItemID: q.Get("item_id"),
		Search: q.Get("search"),
		Open:   queryBool(r, "open"),
	})
	if err != nil {
		writeError(w, err, "failed to list borrows")
		return
	}
	if borrows == nil {
		borrows = []model.Borrow{}
	}
	jsonResponse(w, http.StatusOK, borrows)
}

// Create handles POST /api/borrows.
func (h *BorrowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := store.BorrowInput{
		ItemID:     strings.TrimSpace(req.ItemID),
		Quantity:   req.Quantity,
		Borrower:   strings.TrimSpace(req.Borrower),
		Department: strings.TrimSpace(req.Department),
	}
	if in.ItemID == "" || in.Borrower == "" || in.Department == "" {
		jsonError(w, http.StatusBadRequest, "item_id, borrower, and department required")
		return
	}
	if in.Quantity <= 0 {
		jsonError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	due, err := model.ParseDate(req.DueDate)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "due_date must be a YYYY-MM-DD date")
		return
	}
	if due.Before(h.today()) {
		jsonError(w, http.StatusBadRequest, "due_date must not be in the past")
		return
	}
	in.DueDate = due

	claims := GetClaims(r.Context())
	in.BorrowedBy = &claims.UserID

	b, err := store.CreateBorrow(r.Context(), h.DB, in, claims.Username)
	if err != nil {
		writeError(w, err, "failed to create borrow")
		return
	}
	h.Checker.check(r.Context(), b.ItemID)

	slog.Info("item borrowed", "user", claims.Username, "item", b.ItemID, "quantity", b.Quantity,
		"borrower", b.Borrower, "due", req.DueDate)
	jsonResponse(w, http.StatusCreated, b)
}

// Get handles GET /api/borrows/{id}.
func (h *BorrowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}
	b, err := store.GetBorrow(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err, "failed to get borrow")
		return
	}
	if b == nil {
		jsonError(w, http.StatusNotFound, "borrow not found")
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Return handles PUT /api/borrows/{id}/return. Due-date notifications of the
// borrow are resolved once it is back.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}

	claims := GetClaims(r.Context())
	b, err := store.ReturnBorrow(r.Context(), h.DB, id, claims.Username)
	if err != nil {
		writeError(w, err, "failed to return borrow")
		return
	}
	h.Checker.check(r.Context(), b.ItemID)

	if e := h.Checker.engine(); e != nil {
		by := claims.UserID
		for _, d := range []model.Details{model.PastDueDetails{BorrowID: id}, model.NearDueDetails{BorrowID: id}} {
			if _, err := e.ResolveCondition(r.Context(), d, &by, "Returned"); err != nil {
				slog.Warn("failed to resolve borrow notifications", "borrow", id, "error", err)
			}
		}
	}

	slog.Info("item returned", "user", claims.Username, "borrow", id, "item", b.ItemID, "quantity", b.Quantity)
	jsonResponse(w, http.StatusOK, b)
}

func (h *BorrowsHandler) today() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return now().UTC().Truncate(24 * time.Hour)
}
