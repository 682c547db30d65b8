package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tableExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

// runUnstamped applies migrations up to and including version without
// touching user_version.
func runUnstamped(t *testing.T, conn *sql.DB, version int) {
	t.Helper()
	for _, m := range migrations {
		if m.Version > version {
			break
		}
		tx, err := conn.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := m.Up(tx); err != nil {
			t.Fatalf("migration %d: %v", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
}

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
	for _, table := range []string{"collection_events", "videos", "raw_items", "processed_stats", "conversion_rules", "video_conversion_rules"} {
		if !tableExists(t, db.conn, table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, err := schemaVersion(db2.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateFromVersion1(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	runUnstamped(t, raw, 1)
	if _, err := raw.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if !tableExists(t, db.conn, "video_conversion_rules") {
		t.Error("expected video_conversion_rules to be created by migration 2")
	}
	if version, _ := schemaVersion(db.conn); version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateRerunsUnstampedStep(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "crashed.db")

	// Schema committed but the version stamp never written.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	runUnstamped(t, raw, latestVersion())
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	version, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestSchemaVersionEmptyDB(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	version, err := schemaVersion(conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on new db, got %d", version)
	}
}

func TestPending(t *testing.T) {
	if got := len(pending(0)); got != len(migrations) {
		t.Errorf("expected %d pending migrations on a new db, got %d", len(migrations), got)
	}
	if got := pending(latestVersion()); len(got) != 0 {
		t.Errorf("expected nothing pending at the latest version, got %d", len(got))
	}
	if got := pending(1); len(got) == 0 || got[0].Version != 2 {
		t.Errorf("expected migration 2 first after version 1, got %+v", got)
	}
}
