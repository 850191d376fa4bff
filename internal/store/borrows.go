package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// BorrowInput describes a new borrow.
type BorrowInput struct {
	ItemID     string
	Quantity   int
	Borrower   string
	Department string
	DueDate    time.Time
	BorrowedBy *int64
}

// BorrowFilter narrows a borrow listing.
type BorrowFilter struct {
	Status string
	ItemID string
	Search string
	// Open limits results to borrows that are not Returned.
	Open bool
}

const borrowColumns = `b.id, b.item_id, b.quantity, b.borrower, b.department, b.borrowed_at, b.due_date,
	b.status, b.returned_at, b.borrowed_by, COALESCE(i.name, ''), COALESCE(i.category, '')`

const borrowFrom = ` FROM borrows b LEFT JOIN items i ON i.id = b.item_id`

// CreateBorrow lends out quantity units of an item in a single transaction:
// the stock check, the decrement, the borrow record and the audit line.
func CreateBorrow(ctx context.Context, db *sql.DB, in BorrowInput, actor string) (*model.Borrow, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	var id int64
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		item, err := GetItem(ctx, tx, in.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}
		if item.Quantity < in.Quantity {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientQuantity, item.Quantity, in.Quantity)
		}

		if _, err := setQuantity(ctx, tx, item, item.Quantity-in.Quantity); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO borrows (item_id, quantity, borrower, department, borrowed_at, due_date, status, borrowed_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ItemID, in.Quantity, in.Borrower, in.Department, now(),
			in.DueDate.Format(model.DateLayout), model.BorrowStatusBorrowed, in.BorrowedBy,
		)
		if err != nil {
			return fmt.Errorf("recording borrow: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("getting borrow id: %w", err)
		}

		return LogActivity(ctx, tx, actor, model.ActionBorrow,
			fmt.Sprintf("%s (%s) borrowed %d x %s, due %s", in.Borrower, in.Department, in.Quantity,
				item.Name, in.DueDate.Format(model.DateLayout)), in.ItemID)
	})
	if err != nil {
		return nil, err
	}
	return GetBorrow(ctx, db, id)
}

// ReturnBorrow marks a borrow Returned and puts its quantity back in stock.
// Returning an already returned borrow fails with ErrConflict.
func ReturnBorrow(ctx context.Context, db *sql.DB, id int64, actor string) (*model.Borrow, error) {
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		b, err := GetBorrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}
		if b.Status == model.BorrowStatusReturned {
			return fmt.Errorf("%w: borrow %d already returned", ErrConflict, id)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE borrows SET status = ?, returned_at = ? WHERE id = ?`,
			model.BorrowStatusReturned, now(), id,
		); err != nil {
			return fmt.Errorf("returning borrow: %w", err)
		}

		item, err := GetItem(ctx, tx, b.ItemID)
		if err != nil {
			return err
		}
		if item != nil {
			if _, err := setQuantity(ctx, tx, item, item.Quantity+b.Quantity); err != nil {
				return err
			}
		}

		return LogActivity(ctx, tx, actor, model.ActionReturn,
			fmt.Sprintf("%s returned %d x %s", b.Borrower, b.Quantity, b.ItemName), b.ItemID)
	})
	if err != nil {
		return nil, err
	}
	return GetBorrow(ctx, db, id)
}

// GetBorrow returns a borrow by ID.
func GetBorrow(ctx context.Context, q Queryer, id int64) (*model.Borrow, error) {
	b, err := scanBorrow(q.QueryRowContext(ctx, `SELECT `+borrowColumns+borrowFrom+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow: %w", err)
	}
	return b, nil
}

// ListBorrows returns borrows, most recent first.
func ListBorrows(ctx context.Context, q Queryer, f BorrowFilter) ([]model.Borrow, error) {
	query := `SELECT ` + borrowColumns + borrowFrom + ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND b.status = ?`
		args = append(args, f.Status)
	}
	if f.Open {
		query += ` AND b.status != ?`
		args = append(args, model.BorrowStatusReturned)
	}
	if f.ItemID != "" {
		query += ` AND b.item_id = ?`
		args = append(args, f.ItemID)
	}
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		query += ` AND (i.name LIKE ? OR b.borrower LIKE ? OR b.department LIKE ?)`
		args = append(args, p, p, p)
	}
	query += ` ORDER BY b.borrowed_at DESC, b.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrows: %w", err)
	}
	defer rows.Close()

	var out []model.Borrow
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBorrow(s scanner) (*model.Borrow, error) {
	b := &model.Borrow{}
	var due string
	if err := s.Scan(&b.ID, &b.ItemID, &b.Quantity, &b.Borrower, &b.Department, &b.BorrowedAt, &due,
		&b.Status, &b.ReturnedAt, &b.BorrowedBy, &b.ItemName, &b.Category); err != nil {
		return nil, err
	}
	d, err := model.ParseDate(due)
	if err != nil {
		return nil, fmt.Errorf("parsing due date of borrow %d: %w", b.ID, err)
	}
	b.DueDate = d
	return b, nil
}

// MarkPastDue transitions the given borrows from Borrowed to Past Due in one
// transaction and returns the IDs that actually changed. Borrows already past
// due or returned are left untouched.
func MarkPastDue(ctx context.Context, db *sql.DB, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, model.BorrowStatusPastDue)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, model.BorrowStatusBorrowed)

	var changed []int64
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`UPDATE borrows SET status = ? WHERE id IN (`+placeholders(len(ids))+`) AND status = ? RETURNING id`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("marking borrows past due: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scanning past due borrow: %w", err)
			}
			changed = append(changed, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}
