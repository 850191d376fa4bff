// Package store holds the SQL access functions for every table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by mutations targeting a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientQuantity is returned when a borrow exceeds available stock.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrConflict is returned when a mutation contradicts the current state of a row.
	ErrConflict = errors.New("conflict")
)

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now is the clock used for row timestamps.
var now = func() time.Time { return time.Now().UTC() }

// inTx runs fn in a transaction, committing when it returns nil.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// nextDatedID returns the next identifier of the form <prefix>YYYYMMDDNNN
// for table, where NNN is a per-day sequence starting at 001.
func nextDatedID(ctx context.Context, q Queryer, table, prefix string, t time.Time) (string, error) {
	base := prefix + t.Format("20060102")

	var last string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE id LIKE ? ORDER BY length(id) DESC, id DESC LIMIT 1`,
		base+"%",
	).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("reading last %s id: %w", table, err)
	}

	seq := 1
	if last != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(last, base))
		if err != nil {
			return "", fmt.Errorf("parsing %s id %q: %w", table, last, err)
		}
		seq = n + 1
	}
	return fmt.Sprintf("%s%03d", base, seq), nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func likePattern(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
