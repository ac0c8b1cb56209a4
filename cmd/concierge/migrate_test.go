package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig writes a minimal sqlite-backed config file and returns its
// path. The database file lives in the same temp directory.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "database:\n  sqlite_path: " + filepath.Join(dir, "concierge.db") + "\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunMigrate(t *testing.T) {
	configPath := writeTestConfig(t)

	buf := new(bytes.Buffer)
	if err := runMigrate(buf, configPath); err != nil {
		t.Fatalf("runMigrate: %v", err)
	}

	if !strings.Contains(buf.String(), "Migrated") {
		t.Errorf("expected migration summary, got: %s", buf.String())
	}
	dbPath := filepath.Join(filepath.Dir(configPath), "concierge.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database file at %s: %v", dbPath, err)
	}
}

func TestRunMigrateMissingConfig(t *testing.T) {
	if err := runMigrate(new(bytes.Buffer), "/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRunMigrateIdempotent(t *testing.T) {
	configPath := writeTestConfig(t)

	for i := 0; i < 2; i++ {
		if err := runMigrate(new(bytes.Buffer), configPath); err != nil {
			t.Fatalf("runMigrate pass %d: %v", i+1, err)
		}
	}
}
