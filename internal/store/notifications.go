package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

const notificationColumns = `id, type, message, details, dedup_key, created_at, read, resolved,
	resolved_at, resolved_by, COALESCE(resolution_note, ''), user_id`

// InsertNotification appends n to the ledger as unread and unresolved and sets
// its ID. It returns false without error when an unread notification with the
// same dedup key already exists.
func InsertNotification(ctx context.Context, q Queryer, n *model.Notification) (bool, error) {
	details, err := json.Marshal(n.Details)
	if err != nil {
		return false, fmt.Errorf("encoding notification details: %w", err)
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO notifications (type, message, details, dedup_key, created_at, user_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		n.Type, n.Message, string(details), n.DedupKey, n.CreatedAt, n.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("inserting notification: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, nil
	}
	if n.ID, err = result.LastInsertId(); err != nil {
		return false, fmt.Errorf("getting notification id: %w", err)
	}
	n.Read, n.Resolved = false, false
	return true, nil
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, q Queryer, id int64) (*model.Notification, error) {
	n, err := scanNotification(q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// LatestNotificationByKey returns the unread notification for key if there is
// one, otherwise the most recent read one.
func LatestNotificationByKey(ctx context.Context, q Queryer, key string) (*model.Notification, error) {
	n, err := scanNotification(q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE dedup_key = ?
		 ORDER BY read ASC, created_at DESC, id DESC LIMIT 1`, key,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification by key: %w", err)
	}
	return n, nil
}

// ListNotifications returns notifications newest first.
func ListNotifications(ctx context.Context, q Queryer, f model.NotificationFilter) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE 1=1`
	var args []any

	if f.UserID != nil {
		query += ` AND (user_id = ? OR user_id IS NULL)`
		args = append(args, *f.UserID)
	}
	if !f.IncludeResolved {
		query += ` AND resolved = 0`
	}
	if f.UnreadOnly {
		query += ` AND read = 0`
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func scanNotification(s scanner) (*model.Notification, error) {
	n := &model.Notification{}
	var details string
	if err := s.Scan(&n.ID, &n.Type, &n.Message, &details, &n.DedupKey, &n.CreatedAt, &n.Read, &n.Resolved,
		&n.ResolvedAt, &n.ResolvedBy, &n.ResolutionNote, &n.UserID); err != nil {
		return nil, err
	}
	d, err := model.DecodeDetails(n.Type, []byte(details))
	if err != nil {
		return nil, err
	}
	n.Details = d
	return n, nil
}

// MarkNotificationRead sets the read flag. It reports whether the row changed;
// an already read notification is left as is.
func MarkNotificationRead(ctx context.Context, q Queryer, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND read = 0`, id)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// MarkAllNotificationsRead marks every unread notification visible to userID
// (all of them when nil) as read and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, q Queryer, userID *int64) (int64, error) {
	query := `UPDATE notifications SET read = 1 WHERE read = 0`
	var args []any
	if userID != nil {
		query += ` AND (user_id = ? OR user_id IS NULL)`
		args = append(args, *userID)
	}
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}

// CountUnreadNotifications counts unread, unresolved notifications visible to
// userID (all of them when nil).
func CountUnreadNotifications(ctx context.Context, q Queryer, userID *int64) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE read = 0 AND resolved = 0`
	var args []any
	if userID != nil {
		query += ` AND (user_id = ? OR user_id IS NULL)`
		args = append(args, *userID)
	}
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// ResolveNotification marks a notification resolved (and read) with the
// resolver, note and time. It reports whether the row changed; resolved
// notifications keep their original resolution.
func ResolveNotification(ctx context.Context, q Queryer, id int64, by *int64, note string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE notifications
		 SET resolved = 1, read = 1, resolved_at = ?, resolved_by = ?, resolution_note = ?
		 WHERE id = ? AND resolved = 0`,
		at, by, nullString(note), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolving notification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ResolveNotificationsByKey resolves every unresolved notification with the
// given broadcast dedup key, or the same key addressed to a user
// ("key@<user id>"), and returns how many changed.
func ResolveNotificationsByKey(ctx context.Context, q Queryer, key string, by *int64, note string, at time.Time) (int64, error) {
	owned := key + "@"
	result, err := q.ExecContext(ctx,
		`UPDATE notifications
		 SET resolved = 1, read = 1, resolved_at = ?, resolved_by = ?, resolution_note = ?
		 WHERE (dedup_key = ? OR substr(dedup_key, 1, length(?)) = ?) AND resolved = 0`,
		at, by, nullString(note), key, owned, owned,
	)
	if err != nil {
		return 0, fmt.Errorf("resolving notifications by key: %w", err)
	}
	return result.RowsAffected()
}
