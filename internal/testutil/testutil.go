// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the navtree project.
package testutil

import (
	"database/sql"
	"log/slog"
	"os"
	"testing"

	"github.com/navtree/navtree/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestDB creates a temporary test database with migrations applied.
// Returns the database and a cleanup function that should be deferred.
func TestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "navtree-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	}
}
