package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/api"
	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/metrics"
	"github.com/erazemk/zaloga/internal/photo"
	"github.com/erazemk/zaloga/internal/store"
	"github.com/erazemk/zaloga/internal/sweeper"
)

func runServe(cmd *cobra.Command, args []string) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DB); errors.Is(err, os.ErrNotExist) {
		database, password, err := initDatabase(cfg.DB, cfg.Auth.AdminUsername)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cmd.OutOrStdout(), cfg.DB, cfg.Auth.AdminUsername, password)
		fmt.Fprintln(cmd.OutOrStdout())
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DB)

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(cmd.Context(), database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	m := metrics.New()
	engine := alert.New(database, cfg.Alerts.Engine())
	engine.Metrics = m
	if err := engine.Configure(cmd.Context()); err != nil {
		return err
	}

	handler := api.NewRouter(database, api.Options{
		Issuer:      auth.NewIssuer(jwtSecret, cfg.Auth.TokenTTL),
		Engine:      engine,
		Metrics:     m,
		Photo:       photo.DefaultOptions(),
		CORSOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	runner := &sweeper.Runner{
		Name:     "condition sweep",
		Interval: cfg.Alerts.SweepInterval,
		Timeout:  cfg.Alerts.SweepTimeout,
		Fn: func(ctx context.Context) error {
			_, err := engine.Sweep(ctx)
			return err
		},
	}
	g.Go(func() error { return runner.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped, closing database")
	return nil
}
