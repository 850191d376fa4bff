package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/zaloga/internal/config"
)

var version = "dev"

var (
	// Global flags
	configPath string
	envFile    string
	dbPath     string
	logPath    string

	// Serve flags
	addr      string
	adminUser string

	cfg      *config.Config
	closeLog func()
)

// rootCmd runs the server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "zaloga",
	Short: "Inventory, borrowing and stock alert service",
	Long: `zaloga tracks items, categories, suppliers and borrows in a single SQLite
database and raises notifications for low stock, expirations and overdue borrows.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath, envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		closeLog, err = setupLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the periodic condition sweep",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new database with an admin account",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate all items and borrows once and print a summary",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "zaloga", version)
	},
}

// applyFlags overrides configuration with flags given on the command line.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = dbPath
	}
	if flags.Changed("log") {
		cfg.Log.File = logPath
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Changed("user") {
		cfg.Auth.AdminUsername = adminUser
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "zaloga.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with ZALOGA_ overrides")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "zaloga.sqlite3", "SQLite database path")
	rootCmd.PersistentFlags().StringVarP(&logPath, "log", "l", "", "log file path (default: stdout/stderr only)")

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	}
	for _, c := range []*cobra.Command{rootCmd, serveCmd, initCmd} {
		c.Flags().StringVarP(&adminUser, "user", "u", "Admin", "admin username on first run")
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
