package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateUpAndVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	// MigrateUp takes ownership of conn and closes it.
	if err := MigrateUp(conn, "file://migrations"); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	conn, err = NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := GetMigrationVersion(conn, "file://migrations")
	if err != nil {
		t.Fatalf("GetMigrationVersion failed: %v", err)
	}
	if version == 0 {
		t.Error("version = 0 after migration")
	}
	if dirty {
		t.Error("database reported dirty after clean migration")
	}
}

func TestMigrateDownRemovesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateUp(conn, "file://migrations"); err != nil {
		t.Fatal(err)
	}

	conn, err = NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(conn, "file://migrations", -1); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	conn, err = NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var count int
	err = conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='visualizations'",
	).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("visualizations table still present after down migration")
	}
}

func TestGetMigrationVersionFreshDatabase(t *testing.T) {
	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := GetMigrationVersion(conn, "file://migrations")
	if err != nil {
		t.Fatalf("GetMigrationVersion failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("fresh database reports version=%d dirty=%v", version, dirty)
	}
}

func TestNewMigratorValidation(t *testing.T) {
	if _, err := newMigrator(nil, DefaultMigrationConfig("file://migrations")); err == nil {
		t.Error("expected error for nil connection")
	}

	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := newMigrator(conn, MigrationConfig{}); err == nil {
		t.Error("expected error for empty migrations path")
	}
}
