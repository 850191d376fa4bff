package alert

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Recorder receives engine events for metrics.
type Recorder interface {
	NotificationRaised(typ string)
	NotificationSuppressed(typ string)
	PastDueMarked(n int)
	SweepCompleted(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) NotificationRaised(string) {}
func (nopRecorder) NotificationSuppressed(string) {}
func (nopRecorder) PastDueMarked(int) {}
func (nopRecorder) SweepCompleted(time.Duration, error) {}

// Engine is the single authority over the notification ledger. Every surface
// raising, reading or resolving notifications goes through it.
type Engine struct {
	DB        *sql.DB
	Evaluator Evaluator
	Now       Clock
	Metrics   Recorder
}

// New returns an engine over db using the wall clock.
func New(db *sql.DB, cfg Config) *Engine {
	return &Engine{
		DB:        db,
		Evaluator: Evaluator{Cfg: cfg},
		Now:       func() time.Time { return time.Now().UTC() },
		Metrics:   nopRecorder{},
	}
}

// Configure stores the engine settings that store writes rely on, so that
// categories created without a threshold get the configured default.
func (e *Engine) Configure(ctx context.Context) error {
	err := store.SetDefaultThreshold(ctx, e.DB, e.Evaluator.Cfg.DefaultThreshold)
	return storageErr("storing alert settings", err)
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Engine) metrics() Recorder {
	if e.Metrics == nil {
		return nopRecorder{}
	}
	return e.Metrics
}

func validate(c Candidate) error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Reason: "is required"}
	}
	if c.Message == "" {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	if c.Details == nil {
		return &ValidationError{Field: "details", Reason: "is required"}
	}
	if c.Details.Type() != c.Type {
		return &ValidationError{Field: "details", Reason: "do not match type " + c.Type}
	}
	if err := c.Details.Validate(); err != nil {
		return &ValidationError{Field: "details", Reason: err.Error()}
	}
	return nil
}

// ShouldCreate reports whether the dedup guard would let c through: no
// unread notification exists for its key and the cool-down, if any, has
// passed since the last one.
func (e *Engine) ShouldCreate(ctx context.Context, c Candidate) (bool, error) {
	if err := validate(c); err != nil {
		return false, err
	}
	latest, err := store.LatestNotificationByKey(ctx, e.DB, c.Key().String())
	if err != nil {
		return false, storageErr("checking dedup guard", err)
	}
	return e.admits(latest), nil
}

func (e *Engine) admits(latest *model.Notification) bool {
	if latest == nil {
		return true
	}
	if !latest.Read {
		return false
	}
	cd := e.Evaluator.Cfg.Cooldown
	return cd <= 0 || e.now().Sub(latest.CreatedAt) >= cd
}

// Raise passes c through the dedup guard and appends it to the ledger. It
// returns the new notification and true, or the notification that suppressed
// it and false.
func (e *Engine) Raise(ctx context.Context, c Candidate) (*model.Notification, bool, error) {
	if err := validate(c); err != nil {
		return nil, false, err
	}
	key := c.Key().String()

	var (
		n       *model.Notification
		created bool
	)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storageErr("raising notification", err)
	}
	defer tx.Rollback()

	latest, err := store.LatestNotificationByKey(ctx, tx, key)
	if err != nil {
		return nil, false, storageErr("checking dedup guard", err)
	}
	if e.admits(latest) {
		n, created, err = e.append(ctx, tx, c, key)
		if err != nil {
			return nil, false, err
		}
		if !created {
			// Lost a race with a concurrent raise for the same key.
			if n, err = store.LatestNotificationByKey(ctx, tx, key); err != nil {
				return nil, false, storageErr("checking dedup guard", err)
			}
		}
	} else {
		n = latest
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storageErr("raising notification", err)
	}

	if created {
		e.metrics().NotificationRaised(c.Type)
	} else {
		e.metrics().NotificationSuppressed(c.Type)
	}
	return n, created, nil
}

// Append writes c to the ledger without consulting the cool-down. The ledger
// still holds at most one unread notification per key; a duplicate is
// reported as not created.
func (e *Engine) Append(ctx context.Context, c Candidate) (*model.Notification, bool, error) {
	if err := validate(c); err != nil {
		return nil, false, err
	}
	return e.append(ctx, e.DB, c, c.Key().String())
}

func (e *Engine) append(ctx context.Context, q store.Queryer, c Candidate, key string) (*model.Notification, bool, error) {
	n := &model.Notification{
		Type:      c.Type,
		Message:   c.Message,
		Details:   c.Details,
		DedupKey:  key,
		CreatedAt: e.now(),
		UserID:    c.UserID,
	}
	ok, err := store.InsertNotification(ctx, q, n)
	if err != nil {
		return nil, false, storageErr("appending notification", err)
	}
	if !ok {
		return nil, false, nil
	}
	return n, true, nil
}

// List returns notifications newest first. Resolved ones are excluded unless
// the filter asks for them.
func (e *Engine) List(ctx context.Context, f model.NotificationFilter) ([]model.Notification, error) {
	list, err := store.ListNotifications(ctx, e.DB, f)
	return list, storageErr("listing notifications", err)
}

// Get returns a notification by ID.
func (e *Engine) Get(ctx context.Context, id int64) (*model.Notification, error) {
	n, err := store.GetNotification(ctx, e.DB, id)
	if err != nil {
		return nil, storageErr("getting notification", err)
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

// MarkRead marks a notification read. Marking a read notification again is a
// no-op.
func (e *Engine) MarkRead(ctx context.Context, id int64) error {
	changed, err := store.MarkNotificationRead(ctx, e.DB, id)
	if err != nil {
		return storageErr("marking notification read", err)
	}
	if changed {
		return nil
	}
	_, err = e.Get(ctx, id)
	return err
}

// MarkAllRead marks every notification visible to userID as read (all of them
// when nil) and returns how many changed.
func (e *Engine) MarkAllRead(ctx context.Context, userID *int64) (int64, error) {
	n, err := store.MarkAllNotificationsRead(ctx, e.DB, userID)
	return n, storageErr("marking notifications read", err)
}

// UnreadCount counts unread, unresolved notifications visible to userID.
func (e *Engine) UnreadCount(ctx context.Context, userID *int64) (int, error) {
	n, err := store.CountUnreadNotifications(ctx, e.DB, userID)
	return n, storageErr("counting unread notifications", err)
}
