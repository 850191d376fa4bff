package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zaloga/internal/model"
)

const categoryColumns = `c.id, c.name, c.threshold, c.created_at,
	(SELECT COUNT(*) FROM items i WHERE i.category = c.name)`

// CreateCategory creates a category. A nil threshold uses the configured
// default threshold.
func CreateCategory(ctx context.Context, db *sql.DB, name string, threshold *int, actor string) (*model.Category, error) {
	var id int64
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		t, err := GetDefaultThreshold(ctx, tx)
		if err != nil {
			return err
		}
		if threshold != nil {
			t = *threshold
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, threshold, created_at) VALUES (?, ?, ?)`,
			name, t, now(),
		)
		if err != nil {
			return fmt.Errorf("creating category: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("getting category id: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionAddCategory,
			fmt.Sprintf("Added category %s (threshold %d)", name, t), name)
	})
	if err != nil {
		return nil, err
	}
	return GetCategory(ctx, db, id)
}

// ensureCategory creates the named category with the default threshold if it
// does not exist yet.
func ensureCategory(ctx context.Context, q Queryer, name string) error {
	t, err := GetDefaultThreshold(ctx, q)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO categories (name, threshold, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`,
		name, t, now(),
	)
	if err != nil {
		return fmt.Errorf("ensuring category: %w", err)
	}
	return nil
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, q Queryer, id int64) (*model.Category, error) {
	return getCategory(ctx, q, `c.id = ?`, id)
}

// GetCategoryByName returns a category by its unique name.
func GetCategoryByName(ctx context.Context, q Queryer, name string) (*model.Category, error) {
	return getCategory(ctx, q, `c.name = ?`, name)
}

func getCategory(ctx context.Context, q Queryer, where string, arg any) (*model.Category, error) {
	c := &model.Category{}
	err := q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE `+where, arg,
	).Scan(&c.ID, &c.Name, &c.Threshold, &c.CreatedAt, &c.ItemCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, q Queryer) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Threshold, &c.CreatedAt, &c.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpdateCategory renames a category and sets its threshold. Items follow the
// rename through the foreign key.
func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name string, threshold int, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, threshold = ? WHERE id = ?`,
			name, threshold, id,
		)
		if err != nil {
			return fmt.Errorf("updating category: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionEditCategory,
			fmt.Sprintf("Updated category %s (threshold %d)", name, threshold), name)
	})
}

// SetCategoryThreshold changes only the threshold of a category.
func SetCategoryThreshold(ctx context.Context, db *sql.DB, id int64, threshold int, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx,
			`UPDATE categories SET threshold = ? WHERE id = ? RETURNING name`,
			threshold, id,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("setting category threshold: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionEditCategory,
			fmt.Sprintf("Set threshold of %s to %d", name, threshold), name)
	})
}

// DeleteCategory deletes a category that no item references.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		c, err := GetCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotFound
		}
		if c.ItemCount > 0 {
			return fmt.Errorf("%w: category %s has %d items", ErrConflict, c.Name, c.ItemCount)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionDeleteCategory,
			fmt.Sprintf("Deleted category %s", c.Name), c.Name)
	})
}
