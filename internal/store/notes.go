package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zaloga/internal/model"
)

// Note orderings accepted by ListNotes.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortPriority = "priority"
)

var noteOrder = map[string]string{
	SortNewest:   `created_at DESC, id DESC`,
	SortOldest:   `created_at ASC, id ASC`,
	SortPriority: `CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at DESC, id DESC`,
}

// ValidNoteSort reports whether s is an accepted note ordering.
func ValidNoteSort(s string) bool {
	_, ok := noteOrder[s]
	return ok
}

const noteColumns = `id, user_id, content, priority, created_at, updated_at`

// CreateNote creates a note owned by userID.
func CreateNote(ctx context.Context, db *sql.DB, userID int64, content, priority, actor string) (*model.Note, error) {
	var id int64
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		t := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO notes (user_id, content, priority, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			userID, content, priority, t, t,
		)
		if err != nil {
			return fmt.Errorf("creating note: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("getting note id: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionAddNote,
			fmt.Sprintf("Added %s priority note", priority), fmt.Sprint(id))
	})
	if err != nil {
		return nil, err
	}
	return GetNote(ctx, db, id)
}

// GetNote returns a note by ID.
func GetNote(ctx context.Context, q Queryer, id int64) (*model.Note, error) {
	n := &model.Note{}
	err := q.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.UserID, &n.Content, &n.Priority, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	return n, nil
}

// ListNotes returns the notes of a user in the given order (default newest).
func ListNotes(ctx context.Context, q Queryer, userID int64, sort string) ([]model.Note, error) {
	order, ok := noteOrder[sort]
	if !ok {
		order = noteOrder[SortNewest]
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = ? ORDER BY `+order, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.Priority, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNote edits a note owned by userID. Notes of other users are reported
// as ErrNotFound.
func UpdateNote(ctx context.Context, db *sql.DB, id, userID int64, content, priority, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE notes SET content = ?, priority = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			content, priority, now(), id, userID,
		)
		if err != nil {
			return fmt.Errorf("updating note: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionEditNote, "Edited note", fmt.Sprint(id))
	})
}

// DeleteNote deletes a note owned by userID.
func DeleteNote(ctx context.Context, db *sql.DB, id, userID int64, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("deleting note: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionDeleteNote, "Deleted note", fmt.Sprint(id))
	})
}
