package migrate_test

import (
	"database/sql"
	"testing"

	"finiate/internal/db"
	"finiate/internal/migrate"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateAppliesAllSteps(t *testing.T) {
	conn := openTestDB(t)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 2 {
		t.Fatalf("expected schema version >= 2, got %d", v)
	}
	for _, table := range []string{"agenda", "log"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
	// Every applied step left a ledger row.
	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if rows != v {
		t.Fatalf("expected %d ledger rows, got %d", v, rows)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn := openTestDB(t)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	before, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	after, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version after: %v", err)
	}
	if after != before {
		t.Fatalf("repeat migrate moved version %d -> %d", before, after)
	}
}

func TestMigrateRequiresForeignKeys(t *testing.T) {
	conn, err := sql.Open("sqlite", "file:"+t.TempDir()+"/plain.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err == nil {
		t.Fatal("expected migrate to reject a connection without foreign key enforcement")
	}
}
