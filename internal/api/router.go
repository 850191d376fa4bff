// Package api implements the JSON HTTP API.
package api

import (
	"database/sql"
	"net/http"

	"github.com/rs/cors"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/metrics"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/photo"
)

// Options holds the dependencies of the router besides the database.
type Options struct {
	Issuer  *auth.Issuer
	Engine  *alert.Engine
	Metrics *metrics.Metrics
	Photo   photo.Options
	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty disables CORS headers.
	CORSOrigins []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	if opts.Photo.MaxDimension == 0 {
		opts.Photo = photo.DefaultOptions()
	}

	checker := &itemChecker{Engine: opts.Engine}
	authHandler := &AuthHandler{DB: db, Issuer: opts.Issuer, Engine: opts.Engine}
	usersHandler := &UsersHandler{DB: db, Engine: opts.Engine}
	itemsHandler := &ItemsHandler{DB: db, Checker: checker, Photo: opts.Photo}
	categoriesHandler := &CategoriesHandler{DB: db, Checker: checker}
	suppliersHandler := &SuppliersHandler{DB: db}
	borrowsHandler := &BorrowsHandler{DB: db, Checker: checker}
	notesHandler := &NotesHandler{DB: db}
	activityHandler := &ActivityHandler{DB: db}
	notificationsHandler := &NotificationsHandler{Engine: opts.Engine}

	authMW := AuthMiddleware(opts.Issuer, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	manager := func(h http.HandlerFunc) http.Handler { return authMW(requireManager(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Own account.
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("PUT /api/users/{id}/approve", admin(usersHandler.Approve))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", manager(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", manager(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", manager(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/quantity", manager(itemsHandler.AdjustQuantity))
	mux.Handle("PUT /api/items/{id}/photo", manager(itemsHandler.UploadPhoto))
	mux.Handle("GET /api/items/{id}/photo", authed(itemsHandler.GetPhoto))

	// Categories: read (all roles), write (manager+).
	mux.Handle("GET /api/categories", authed(categoriesHandler.List))
	mux.Handle("POST /api/categories", manager(categoriesHandler.Create))
	mux.Handle("GET /api/categories/{id}", authed(categoriesHandler.Get))
	mux.Handle("PUT /api/categories/{id}", manager(categoriesHandler.Update))
	mux.Handle("PUT /api/categories/{id}/threshold", manager(categoriesHandler.SetThreshold))
	mux.Handle("DELETE /api/categories/{id}", manager(categoriesHandler.Delete))

	// Suppliers: read (all roles), write (manager+).
	mux.Handle("GET /api/suppliers", authed(suppliersHandler.List))
	mux.Handle("POST /api/suppliers", manager(suppliersHandler.Create))
	mux.Handle("GET /api/suppliers/{id}", authed(suppliersHandler.Get))
	mux.Handle("PUT /api/suppliers/{id}", manager(suppliersHandler.Update))
	mux.Handle("DELETE /api/suppliers/{id}", manager(suppliersHandler.Delete))

	// Borrows (all roles).
	mux.Handle("GET /api/borrows", authed(borrowsHandler.List))
	mux.Handle("POST /api/borrows", authed(borrowsHandler.Create))
	mux.Handle("GET /api/borrows/{id}", authed(borrowsHandler.Get))
	mux.Handle("PUT /api/borrows/{id}/return", authed(borrowsHandler.Return))

	// Notes (own notes, all roles).
	mux.Handle("GET /api/notes", authed(notesHandler.List))
	mux.Handle("POST /api/notes", authed(notesHandler.Create))
	mux.Handle("PUT /api/notes/{id}", authed(notesHandler.Update))
	mux.Handle("DELETE /api/notes/{id}", authed(notesHandler.Delete))

	// Activity log (manager+).
	mux.Handle("GET /api/activity", manager(activityHandler.List))

	// Notifications: read (all roles), raise/resolve/check (manager+).
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("GET /api/notifications/unread-count", authed(notificationsHandler.UnreadCount))
	mux.Handle("POST /api/notifications", manager(notificationsHandler.Create))
	mux.Handle("PUT /api/notifications/read-all", authed(notificationsHandler.MarkAllRead))
	mux.Handle("PUT /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))
	mux.Handle("PUT /api/notifications/{id}/resolve", manager(notificationsHandler.Resolve))
	mux.Handle("POST /api/notifications/check", manager(notificationsHandler.Check))

	var h http.Handler = mux
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
		h = MetricsMiddleware(opts.Metrics)(h)
	}
	h = LoggingMiddleware(h)
	if len(opts.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}
