package db

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	dsn := DSN("db.internal", 3306, "concierge", "s3cret", "planhub")

	for _, want := range []string{
		"concierge:s3cret@",
		"tcp(db.internal:3306)",
		"/planhub",
		"parseTime=true",
		"charset=utf8mb4",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing %q: %s", want, dsn)
		}
	}
}

func TestConnectSQLiteAndMigrate(t *testing.T) {
	gdb, err := ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	if !gdb.Migrator().HasTable("tasks") {
		t.Error("expected tasks table after migration")
	}
	if !gdb.Migrator().HasTable("audit_logs") {
		t.Error("expected audit_logs table after migration")
	}
}
