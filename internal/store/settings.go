package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// Setting keys.
const (
	settingJWTSecret = "jwt_secret"
	settingLastSweep = "last_sweep_at"
	settingThreshold = "default_threshold"
)

// GetSetting returns a setting value, or "" if unset.
func GetSetting(ctx context.Context, q Queryer, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value, replacing any previous one.
func SetSetting(ctx context.Context, q Queryer, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetJWTSecret returns the signing secret, generating and storing one on
// first use. Concurrent first calls agree on the same value.
func GetJWTSecret(ctx context.Context, q Queryer) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		settingJWTSecret, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}
	return GetSetting(ctx, q, settingJWTSecret)
}

// SetLastSweep records when the last alert sweep finished.
func SetLastSweep(ctx context.Context, q Queryer, t time.Time) error {
	return SetSetting(ctx, q, settingLastSweep, t.UTC().Format(time.RFC3339))
}

// GetLastSweep returns when the last alert sweep finished, or the zero time.
func GetLastSweep(ctx context.Context, q Queryer) (time.Time, error) {
	v, err := GetSetting(ctx, q, settingLastSweep)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last sweep time: %w", err)
	}
	return t, nil
}

// SetDefaultThreshold sets the threshold given to categories created without
// one, including those created implicitly by new items.
func SetDefaultThreshold(ctx context.Context, q Queryer, threshold int) error {
	if threshold < 0 {
		return fmt.Errorf("default threshold must not be negative, got %d", threshold)
	}
	return SetSetting(ctx, q, settingThreshold, strconv.Itoa(threshold))
}

// GetDefaultThreshold returns the configured default threshold, or
// model.DefaultThreshold when none is stored.
func GetDefaultThreshold(ctx context.Context, q Queryer) (int, error) {
	v, err := GetSetting(ctx, q, settingThreshold)
	if err != nil || v == "" {
		return model.DefaultThreshold, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing default threshold: %w", err)
	}
	return n, nil
}
