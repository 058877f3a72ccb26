// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for gemcms.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/gemcraft/gemcms/internal/store"
)

// TestLogger creates a logger that discards everything.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB opens a temporary SQLite database with all migrations applied.
// It is closed when the test ends.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "gemcms-test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(db) })

	if err := store.Migrate(context.Background(), db, store.DriverSQLite); err != nil {
		t.Fatalf("store.Migrate: %v", err)
	}
	return db
}
