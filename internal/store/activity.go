package store

import (
	"context"
	"fmt"

	"github.com/erazemk/zaloga/internal/model"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

// ActivityFilter narrows an activity log listing.
type ActivityFilter struct {
	Action   string
	EntityID string
	Limit    int
}

// LogActivity appends a line to the audit trail. Callers pass the transaction
// of the mutation being recorded.
func LogActivity(ctx context.Context, q Queryer, username, action, details, entityID string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO activity_log (timestamp, username, action, details, entity_id) VALUES (?, ?, ?, ?, ?)`,
		now(), username, action, details, nullString(entityID),
	)
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// ListActivity returns audit lines, newest first.
func ListActivity(ctx context.Context, q Queryer, f ActivityFilter) ([]model.Activity, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	query := `SELECT id, timestamp, username, action, details, COALESCE(entity_id, '') FROM activity_log WHERE 1=1`
	var args []any
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Username, &a.Action, &a.Details, &a.EntityID); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
