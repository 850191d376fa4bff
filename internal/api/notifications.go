package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/model"
)

// defaultNotificationLimit caps a listing that does not ask for a limit.
const defaultNotificationLimit = 100

// NotificationsHandler exposes the notification ledger.
type NotificationsHandler struct {
	Engine *alert.Engine
}

type createNotificationRequest struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	UserID  *int64          `json:"user_id"`
}

type createNotificationResponse struct {
	Success      bool                `json:"success"`
	Notification *model.Notification `json:"notification"`
	Created      bool                `json:"created"`
}

type resolveRequest struct {
	Note string `json:"note"`
}

// scope returns the user filter for the caller. Regular users only ever see
// their own notifications and broadcasts; managers may pick any user_id or
// see everything.
func scope(r *http.Request) (*int64, bool) {
	claims := GetClaims(r.Context())
	raw := r.URL.Query().Get("user_id")
	if !model.RoleAtLeast(claims.Role, model.RoleManager) {
		if raw != "" && raw != strconv.FormatInt(claims.UserID, 10) {
			return nil, false
		}
		id := claims.UserID
		return &id, true
	}
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// List handles GET /api/notifications?user_id=&show_resolved=&unread=&type=&limit=.
// Without a limit the newest 100 are returned.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := scope(r)
	if !ok {
		jsonError(w, http.StatusForbidden, "cannot list notifications of another user")
		return
	}

	f := model.NotificationFilter{
		UserID:          userID,
		IncludeResolved: queryBool(r, "show_resolved"),
		UnreadOnly:      queryBool(r, "unread"),
		Type:            r.URL.Query().Get("type"),
		Limit:           defaultNotificationLimit,
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		f.Limit = n
	}

	list, err := h.Engine.List(r.Context(), f)
	if err != nil {
		writeError(w, err, "failed to list notifications")
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := scope(r)
	if !ok {
		jsonError(w, http.StatusForbidden, "cannot count notifications of another user")
		return
	}
	n, err := h.Engine.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, err, "failed to count notifications")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": n})
}

// Create handles POST /api/notifications. The candidate passes the dedup
// guard; a suppressed candidate returns the existing notification with
// created=false.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		req.Type = model.NotifyGeneral
	}

	details, err := model.DecodeDetails(req.Type, req.Details)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid details for type "+req.Type)
		return
	}
	if g, ok := details.(model.GeneralDetails); ok && g.Topic == "" {
		g.Topic = req.Message
		details = g
	}

	n, created, err := h.Engine.Raise(r.Context(), alert.Candidate{
		Type:    req.Type,
		Message: req.Message,
		Details: details,
		UserID:  req.UserID,
	})
	if err != nil {
		writeError(w, err, "failed to create notification")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		claims := GetClaims(r.Context())
		slog.Info("notification raised", "user", claims.Username, "notification", n.ID, "type", n.Type)
	}
	jsonResponse(w, status, createNotificationResponse{Success: true, Notification: n, Created: created})
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if _, ok := h.visible(w, r, id); !ok {
		return
	}

	if err := h.Engine.MarkRead(r.Context(), id); err != nil {
		writeError(w, err, "failed to mark notification read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkAllRead handles PUT /api/notifications/read-all for the caller's
// notifications and broadcasts.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := claims.UserID
	n, err := h.Engine.MarkAllRead(r.Context(), &id)
	if err != nil {
		writeError(w, err, "failed to mark notifications read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

// Resolve handles PUT /api/notifications/{id}/resolve. Resolving twice
// returns the already resolved notification unchanged.
func (h *NotificationsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	by := claims.UserID
	n, err := h.Engine.Resolve(r.Context(), id, &by, strings.TrimSpace(req.Note))
	if err != nil {
		writeError(w, err, "failed to resolve notification")
		return
	}

	slog.Info("notification resolved", "user", claims.Username, "notification", id, "type", n.Type)
	jsonResponse(w, http.StatusOK, n)
}

// Check handles POST /api/notifications/check by running one sweep.
func (h *NotificationsHandler) Check(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.Sweep(r.Context())
	if err != nil {
		writeError(w, err, "failed to check conditions")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("condition check run", "user", claims.Username, "raised", result.TotalRaised(),
		"suppressed", result.Suppressed, "past_due_marked", result.PastDueMarked)
	jsonResponse(w, http.StatusOK, result)
}

// visible loads a notification and hides notifications addressed to other
// users from regular users.
func (h *NotificationsHandler) visible(w http.ResponseWriter, r *http.Request, id int64) (*model.Notification, bool) {
	n, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get notification")
		return nil, false
	}
	claims := GetClaims(r.Context())
	if n.UserID != nil && *n.UserID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleManager) {
		jsonError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return n, true
}
