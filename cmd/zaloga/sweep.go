package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/erazemk/zaloga/internal/alert"
	"github.com/erazemk/zaloga/internal/db"
)

func runSweep(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfg.DB); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("database %s does not exist, run zaloga init first", cfg.DB)
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}

	ctx := cmd.Context()
	if cfg.Alerts.SweepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Alerts.SweepTimeout)
		defer cancel()
	}

	engine := alert.New(database, cfg.Alerts.Engine())
	if err := engine.Configure(ctx); err != nil {
		return err
	}
	result, err := engine.Sweep(ctx)
	if result != nil {
		printSweepResult(cmd, result)
	}
	return err
}

func printSweepResult(cmd *cobra.Command, r *alert.SweepResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Checked %d items and %d borrows\n", r.ItemsChecked, r.BorrowsChecked)
	fmt.Fprintf(w, "Marked past due: %d\n", r.PastDueMarked)

	types := make([]string, 0, len(r.Raised))
	for t := range r.Raised {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "Raised %-16s %d\n", t+":", r.Raised[t])
	}
	fmt.Fprintf(w, "Raised total: %d, suppressed: %d\n", r.TotalRaised(), r.Suppressed)
}
