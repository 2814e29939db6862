package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestMigrator_Load_SortsByVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_appointments.sql", "CREATE TABLE b (id INT);")
	writeFile(t, dir, "001_identity.sql", "CREATE TABLE a (id INT);")
	writeFile(t, dir, "010_messages.sql", "CREATE TABLE c (id INT);")

	m := NewMigrator(nil, dir)
	migrations, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	want := []int{1, 2, 10}
	for i, mig := range migrations {
		if mig.Version != want[i] {
			t.Errorf("migration %d: version = %d, want %d", i, mig.Version, want[i])
		}
	}
}

func TestMigrator_Load_SkipsNonNumbered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001_core.sql", "SELECT 1;")
	writeFile(t, dir, "notes.txt", "not a migration")
	writeFile(t, dir, "README.sql", "no numeric prefix")

	m := NewMigrator(nil, dir)
	migrations, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected migration name %q", migrations[0].Name)
	}
}

func TestMigrator_Load_MissingDirectory(t *testing.T) {
	m := NewMigrator(nil, "/does/not/exist")
	if _, err := m.Load(); err == nil {
		t.Error("expected error for missing directory")
	}
}
