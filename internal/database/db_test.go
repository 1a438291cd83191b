package database

import (
	"path/filepath"
	"testing"
)

func TestNewAppliesMigrations(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"apps", "usage_sessions", "daily_summary", "app_settings"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version); err != nil {
		t.Fatalf("failed to read migration version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("migration version = %d, want %d", version, len(migrations))
	}

	// Migration 4 seeds the idle threshold default.
	var value string
	if err := db.QueryRow(
		"SELECT value FROM app_settings WHERE key = 'idle_threshold_seconds'").Scan(&value); err != nil {
		t.Fatalf("seeded setting missing: %v", err)
	}
	if value != "60" {
		t.Errorf("seeded idle threshold = %q, want 60", value)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := db.Exec(
		"UPDATE app_settings SET value = '90' WHERE key = 'idle_threshold_seconds'"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	var count int
	if err := reopened.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("migration rows after reopen = %d, want %d", count, len(migrations))
	}

	// The seed must not overwrite an edited value.
	var value string
	if err := reopened.QueryRow(
		"SELECT value FROM app_settings WHERE key = 'idle_threshold_seconds'").Scan(&value); err != nil {
		t.Fatalf("setting missing after reopen: %v", err)
	}
	if value != "90" {
		t.Errorf("idle threshold after reopen = %q, want 90", value)
	}
}
