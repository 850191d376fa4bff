package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/zaloga/internal/model"
)

// SupplierInput holds the editable fields of a supplier.
type SupplierInput struct {
	Name    string
	Contact string
	Email   string
	Phone   string
	Address string
}

const supplierColumns = `id, name, contact, email, COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at`

// CreateSupplier creates a supplier with an S-prefixed date-coded ID.
func CreateSupplier(ctx context.Context, db *sql.DB, in SupplierInput, actor string) (*model.Supplier, error) {
	var id string
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		t := now()
		var err error
		if id, err = nextDatedID(ctx, tx, "suppliers", "S", t); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO suppliers (id, name, contact, email, phone, address, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.Name, in.Contact, in.Email, nullString(in.Phone), nullString(in.Address), t, t,
		)
		if err != nil {
			return fmt.Errorf("creating supplier: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionAddSupplier,
			fmt.Sprintf("Added supplier %s", in.Name), id)
	})
	if err != nil {
		return nil, err
	}
	return GetSupplier(ctx, db, id)
}

// GetSupplier returns a supplier by ID.
func GetSupplier(ctx context.Context, q Queryer, id string) (*model.Supplier, error) {
	s := &model.Supplier{}
	err := q.QueryRowContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting supplier: %w", err)
	}
	return s, nil
}

// ListSuppliers returns suppliers ordered by name, optionally matching search
// against name, contact and email.
func ListSuppliers(ctx context.Context, q Queryer, search string) ([]model.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers`
	var args []any
	if strings.TrimSpace(search) != "" {
		p := likePattern(search)
		query += ` WHERE name LIKE ? OR contact LIKE ? OR email LIKE ?`
		args = append(args, p, p, p)
	}
	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		var s model.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSupplier replaces the editable fields of a supplier.
func UpdateSupplier(ctx context.Context, db *sql.DB, id string, in SupplierInput, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE suppliers SET name = ?, contact = ?, email = ?, phone = ?, address = ?, updated_at = ?
			 WHERE id = ?`,
			in.Name, in.Contact, in.Email, nullString(in.Phone), nullString(in.Address), now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating supplier: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, model.ActionEditSupplier,
			fmt.Sprintf("Updated supplier %s", in.Name), id)
	})
}

// DeleteSupplier deletes a supplier.
func DeleteSupplier(ctx context.Context, db *sql.DB, id, actor string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		var name string
		err := tx.QueryRowContext(ctx, `DELETE FROM suppliers WHERE id = ? RETURNING name`, id).Scan(&name)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("deleting supplier: %w", err)
		}
		return LogActivity(ctx, tx, actor, model.ActionDeleteSupplier,
			fmt.Sprintf("Deleted supplier %s", name), id)
	})
}
