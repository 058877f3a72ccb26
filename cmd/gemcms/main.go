// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command gemcms runs the storefront CMS API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/config"
	"github.com/gemcraft/gemcms/internal/logging"
	"github.com/gemcraft/gemcms/internal/store"
	"github.com/gemcraft/gemcms/internal/version"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "gemcms",
	Short: "gemcms - REST API for a jewelry storefront",
	Long: `gemcms serves the catalog, marketing content and lead capture API of a
jewelry storefront, backed by PostgreSQL or SQLite.

Configuration is read from GEMCMS_* environment variables; a .env file in
the working directory is loaded first when present.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env files are fine, the environment may be set directly
		_ = godotenv.Load(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the base logger. The returned
// closer flushes the rotating log file, if any.
func setup() (*config.Config, slog.Handler, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	h, closer := logging.NewHandler(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	slog.SetDefault(slog.New(h))
	return cfg, h, closer, nil
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	slog.Info("initializing database", "driver", cfg.DBDriver)
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("running database migrations")
	if err := store.Migrate(ctx, db, cfg.DBDriver); err != nil {
		_ = store.Close(db)
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if err := store.Close(db); err != nil {
		slog.Error("error closing database connection", "error", err)
	}
}
