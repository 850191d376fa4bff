package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/zaloga/internal/model"
)

const userColumns = `id, username, password_hash, role, full_name, email, approved, created_at, deleted_at`

// UserInput holds the fields of a new user.
type UserInput struct {
	Username     string
	PasswordHash string
	Role         string
	FullName     string
	Email        string
	// Approved users can log in immediately; self-registered users start
	// unapproved.
	Approved bool
}

// CreateUser creates a user and records it in the activity log.
func CreateUser(ctx context.Context, db *sql.DB, in UserInput, actor string) (*model.User, error) {
	var id int64
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, role, full_name, email, approved, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.Username, in.PasswordHash, in.Role, in.FullName, in.Email, in.Approved, now(),
		)
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("getting user id: %w", err)
		}

		action, details := model.ActionAddUser, fmt.Sprintf("Added user %s (%s)", in.Username, in.Role)
		if !in.Approved {
			action, details = model.ActionRegister, fmt.Sprintf("User %s registered, awaiting approval", in.Username)
		}
		if actor == "" {
			actor = in.Username
		}
		return LogActivity(ctx, tx, actor, action, details, fmt.Sprint(id))
	})
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q Queryer, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, q Queryer, username string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users. When pendingOnly is set only
// users awaiting approval are returned.
func ListUsers(ctx context.Context, q Queryer, pendingOnly bool) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	if pendingOnly {
		query += ` AND approved = 0`
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FullName, &u.Email,
		&u.Approved, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser updates a user's role.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, role, actor string) error {
	return updateUser(ctx, db, id, actor, model.ActionEditUser,
		fmt.Sprintf("Changed role to %s", role),
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`, role, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash, actor string) error {
	return updateUser(ctx, db, id, actor, model.ActionEditUser, "Changed password",
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`, passwordHash, id)
}

// ApproveUser lets a self-registered user log in.
func ApproveUser(ctx context.Context, db *sql.DB, id int64, actor string) error {
	return updateUser(ctx, db, id, actor, model.ActionApproveUser, "Approved registration",
		`UPDATE users SET approved = 1 WHERE id = ? AND deleted_at IS NULL`, id)
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sql.DB, id int64, actor string) error {
	return updateUser(ctx, db, id, actor, model.ActionDeleteUser, "Deleted user",
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now(), id)
}

func updateUser(ctx context.Context, db *sql.DB, id int64, actor, action, details, query string, args ...any) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return LogActivity(ctx, tx, actor, action, details, fmt.Sprint(id))
	})
}
