package main

import (
	"os" // Exit codes

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"github.com/spf13/cobra"     // Command line flags

	"expense_tracker/internal/config" // Custom import path (Config)
	"expense_tracker/internal/db"     // Custom import path (Database)
	"expense_tracker/internal/utils"  // Logger setup
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Create or update the expense tracker schema",
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(envFile) // Load configuration
		if err != nil {
			return err
		}
		if err := utils.ConfigureLogger(cfg.LogLevel, cfg.IsProd); err != nil {
			return err
		}
		gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
		if err != nil {
			return err
		}
		return db.Migrate(gdb)
	},
}

// Main entry point for migration
func main() {
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "env file to load (default: .env when present)")
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
