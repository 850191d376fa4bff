package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// ItemInput holds the editable fields of an item. An empty Status is derived
// from the quantity and the category threshold.
type ItemInput struct {
	Name       string
	Category   string
	Quantity   int
	Status     string
	Expiration *time.Time
	Quality    string
}

// ItemFilter narrows an item listing.
type ItemFilter struct {
	Category string
	Status   string
	Search   string
}

const itemColumns = `i.id, i.name, i.category, i.quantity, i.status, i.expiration,
	COALESCE(i.quality, ''), COALESCE(i.photo_mime, ''), i.created_at, i.updated_at,
	COALESCE(c.threshold,
		(SELECT CAST(s.value AS INTEGER) FROM settings s WHERE s.key = 'default_threshold'), ?)`

const itemFrom = ` FROM items i LEFT JOIN categories c ON c.name = i.category`

// CreateItem creates an item with a date-coded ID, creating its category on
// first use.
func CreateItem(ctx context.Context, db *sql.DB, in ItemInput, actor string) (*model.Item, error) {
	var id string
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		if err := ensureCategory(ctx, tx, in.Category); err != nil {
			return err
		}
		threshold, err := categoryThreshold(ctx, tx, in.Category)
		if err != nil {
			return err
		}

		t := now()
		if id, err = nextDatedID(ctx, tx, "items", "", t); err != nil {
			return err
		}

		status := in.Status
		if status == "" {
			status = model.DeriveItemStatus(in.Quantity, threshold)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, name, category, quantity, status, expiration, quality, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.Name, in.Category, in.Quantity, status, formatDate(in.Expiration), nullString(in.Quality), t, t,
		)
		if err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionAddItem,
			fmt.Sprintf("Added item %s (%d in %s)", in.Name, in.Quantity, in.Category), id)
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID with its category threshold.
func GetItem(ctx context.Context, q Queryer, id string) (*model.Item, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, model.DefaultThreshold, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items ordered by name.
func ListItems(ctx context.Context, q Queryer, f ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + itemFrom + ` WHERE 1=1`
	args := []any{model.DefaultThreshold}

	if f.Category != "" {
		query += ` AND i.category = ?`
		args = append(args, f.Category)
	}
	if f.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, f.Status)
	}
	if strings.TrimSpace(f.Search) != "" {
		query += ` AND (i.name LIKE ? OR i.id LIKE ?)`
		args = append(args, likePattern(f.Search), likePattern(f.Search))
	}
	query += ` ORDER BY i.name, i.id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	var expiration sql.NullString
	if err := s.Scan(&item.ID, &item.Name, &item.Category, &item.Quantity, &item.Status, &expiration,
		&item.Quality, &item.PhotoMime, &item.CreatedAt, &item.UpdatedAt, &item.Threshold); err != nil {
		return nil, err
	}
	if expiration.Valid && expiration.String != "" {
		d, err := model.ParseDate(expiration.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expiration of %s: %w", item.ID, err)
		}
		item.Expiration = &d
	}
	return item, nil
}

// UpdateItem replaces the editable fields of an item.
func UpdateItem(ctx context.Context, db *sql.DB, id string, in ItemInput, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if err := ensureCategory(ctx, tx, in.Category); err != nil {
			return err
		}
		threshold, err := categoryThreshold(ctx, tx, in.Category)
		if err != nil {
			return err
		}
		status := in.Status
		if status == "" {
			status = model.DeriveItemStatus(in.Quantity, threshold)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE items SET name = ?, category = ?, quantity = ?, status = ?, expiration = ?, quality = ?, updated_at = ?
			 WHERE id = ?`,
			in.Name, in.Category, in.Quantity, status, formatDate(in.Expiration), nullString(in.Quality), now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionEditItem,
			fmt.Sprintf("Updated item %s", in.Name), id)
	})
}

// DeleteItem deletes an item together with its returned borrow history.
// Items with open borrows cannot be deleted.
func DeleteItem(ctx context.Context, db *sql.DB, id, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		item, err := GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}

		var open int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM borrows WHERE item_id = ? AND status != ?`, id, model.BorrowStatusReturned,
		).Scan(&open); err != nil {
			return fmt.Errorf("counting open borrows: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("%w: item %s has %d open borrows", ErrConflict, item.Name, open)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM borrows WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("deleting borrow history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionDeleteItem,
			fmt.Sprintf("Deleted item %s", item.Name), id)
	})
}

// AdjustQuantity adds delta to an item's quantity, clamping at zero, and
// re-derives its status.
func AdjustQuantity(ctx context.Context, db *sql.DB, id string, delta int, actor string) (*model.Item, error) {
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		item, err := GetItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}
		q, err := setQuantity(ctx, tx, item, item.Quantity+delta)
		if err != nil {
			return err
		}
		return LogActivity(ctx, tx, actor, model.ActionUpdateQuantity,
			fmt.Sprintf("Changed quantity of %s from %d to %d", item.Name, item.Quantity, q), id)
	})
	if err != nil {
		return nil, err
	}
	return GetItem(ctx, db, id)
}

// setQuantity writes a clamped quantity and the status it implies, returning
// the stored quantity.
func setQuantity(ctx context.Context, tx *sql.Tx, item *model.Item, quantity int) (int, error) {
	quantity = max(quantity, 0)
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, status = ?, updated_at = ? WHERE id = ?`,
		quantity, model.DeriveItemStatus(quantity, item.Threshold), now(), item.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("updating item quantity: %w", err)
	}
	return quantity, nil
}

// SetItemPhoto stores an item's photo and thumbnail.
func SetItemPhoto(ctx context.Context, db *sql.DB, id string, photo, thumbnail []byte, mime, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE items SET photo = ?, thumbnail = ?, photo_mime = ?, updated_at = ? WHERE id = ?`,
			photo, thumbnail, mime, now(), id,
		)
		if err != nil {
			return fmt.Errorf("setting item photo: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionItemPhoto, "Uploaded item photo", id)
	})
}

// GetItemPhoto returns an item's photo, or its thumbnail when thumb is set,
// along with the MIME type. A missing item or photo returns nil data.
func GetItemPhoto(ctx context.Context, q Queryer, id string, thumb bool) ([]byte, string, error) {
	column := "photo"
	if thumb {
		column = "thumbnail"
	}
	var data []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT `+column+`, photo_mime FROM items WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return data, mime.String, nil
}

func categoryThreshold(ctx context.Context, q Queryer, name string) (int, error) {
	var t int
	err := q.QueryRowContext(ctx, `SELECT threshold FROM categories WHERE name = ?`, name).Scan(&t)
	if err == sql.ErrNoRows {
		return GetDefaultThreshold(ctx, q)
	}
	if err != nil {
		return 0, fmt.Errorf("getting category threshold: %w", err)
	}
	return t, nil
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(model.DateLayout), Valid: true}
}
