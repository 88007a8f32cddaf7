package db

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestDatabase opens a migrated database in a temp directory.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := NewDatabaseWithConfig(DatabaseConfig{
		Path:           path,
		MigrationsPath: "file://migrations",
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestNewDatabaseCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "data.db")
	database, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestDatabaseCloseIsIdempotent(t *testing.T) {
	database := newTestDatabase(t)
	if err := database.Close(); err != nil {
		t.Fatal(err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestDatabasePingAfterClose(t *testing.T) {
	database := newTestDatabase(t)
	database.Close()
	if err := database.Ping(); err == nil {
		t.Error("expected error pinging closed database")
	}
}

func TestDatabaseMigrateCreatesTables(t *testing.T) {
	database := newTestDatabase(t)

	for _, table := range []string{"visualizations", "concepts", "pipeline_metrics"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

func TestDatabaseMigrateIsIdempotent(t *testing.T) {
	database := newTestDatabase(t)
	if err := database.Migrate(); err != nil {
		t.Errorf("second Migrate returned %v", err)
	}
}
