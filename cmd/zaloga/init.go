package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfg.DB); err == nil {
		return fmt.Errorf("database %s already exists", cfg.DB)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	database, password, err := initDatabase(cfg.DB, cfg.Auth.AdminUsername)
	if err != nil {
		return err
	}
	defer database.Close()

	printInitResult(cmd.OutOrStdout(), cfg.DB, cfg.Auth.AdminUsername, password)
	return nil
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(format string, err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf(format, err)
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail("ensuring schema: %w", err)
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fail("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fail("hashing password: %w", err)
	}

	_, err = store.CreateUser(context.Background(), database, store.UserInput{
		Username:     adminUsername,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		FullName:     "Administrator",
		Approved:     true,
	}, "system")
	if err != nil {
		return fail("creating admin user: %w", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result.
func printInitResult(w io.Writer, dbPath, username, password string) {
	fmt.Fprintf(w, "Database created: %s\n", dbPath)
	fmt.Fprintln(w, "Schema initialized.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "The admin can change it after logging in.")
}
