package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr, slog.LevelInfo, "json"))

	logger.Debug("hidden")
	logger.Info("hello", "k", "v")
	logger.Warn("careful")
	logger.Error("broken")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), `"msg":"hello"`)
	assert.Contains(t, stdout.String(), `"msg":"careful"`)
	assert.NotContains(t, stdout.String(), "broken")
	assert.Contains(t, stderr.String(), `"msg":"broken"`)
}

func TestLevelRouterWithAttrs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(&stdout, &stderr, slog.LevelDebug, "text")).With("component", "sweep")

	logger.Debug("tick")
	assert.Contains(t, stdout.String(), "component=sweep")
	assert.Contains(t, stdout.String(), "msg=tick")
}

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zaloga.sqlite3")
	database, password, err := initDatabase(path, "Admin")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, model.ValidatePassword(password))

	u, err := store.GetUserByUsername(context.Background(), database, "Admin")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, u.Approved)
	assert.True(t, auth.CheckPassword(u.PasswordHash, password))

	var out bytes.Buffer
	printInitResult(&out, path, "Admin", password)
	assert.True(t, strings.Contains(out.String(), "Password: "+password))
}
