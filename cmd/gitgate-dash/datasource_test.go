package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"gitgate/pkg/protocol"

	_ "modernc.org/sqlite"
)

// newStateDB creates a state database with the full schema applied and
// returns its path plus an open handle for seeding.
func newStateDB(t *testing.T) (string, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		t.Fatalf("set WAL: %v", err)
	}
	if _, err := db.Exec(protocol.SchemaDDL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return dbPath, db
}

func TestFetchSnapshotMissingDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "absent.db")
	if _, err := FetchSnapshot(context.Background(), dbPath); err == nil {
		t.Fatal("expected error for missing state db")
	}
}

func TestFetchSnapshotEmptyDB(t *testing.T) {
	dbPath, _ := newStateDB(t)

	snap, err := FetchSnapshot(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if snap.Status.State != protocol.StateStopped {
		t.Errorf("State = %q, want stopped", snap.Status.State)
	}
	if len(snap.Events) != 0 {
		t.Errorf("Events = %d, want 0", len(snap.Events))
	}
}

func TestFetchSnapshotReadsEventsAndHotspots(t *testing.T) {
	dbPath, db := newStateDB(t)

	if _, err := db.Exec(
		`INSERT INTO events (type, lock_scope, lock_file, operation, duration_ms, pid)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"acquire", "global", "/tmp/global.lock", "git merge main", 12, 100,
	); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	// A slow acquire inside the hotspot window.
	if _, err := db.Exec(
		`INSERT INTO metrics (timestamp, event_type, lock_scope, lock_file, duration_ms, operation, pid)
		 VALUES (strftime('%s','now') * 1000, ?, ?, ?, ?, ?, ?)`,
		"acquire", "global", "/tmp/global.lock", 2500, "git rebase main", 100,
	); err != nil {
		t.Fatalf("seed metric: %v", err)
	}

	snap, err := FetchSnapshot(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(snap.Events) != 1 {
		t.Fatalf("Events = %d, want 1", len(snap.Events))
	}
	if snap.Events[0].Operation != "git merge main" {
		t.Errorf("Operation = %q", snap.Events[0].Operation)
	}
	if len(snap.Hotspots.SlowOperations) != 1 {
		t.Fatalf("SlowOperations = %d, want 1", len(snap.Hotspots.SlowOperations))
	}
	if snap.Hotspots.SlowOperations[0].Operation != "git rebase main" {
		t.Errorf("slow op = %q", snap.Hotspots.SlowOperations[0].Operation)
	}
}

func TestFetchSnapshotCapsEventCount(t *testing.T) {
	dbPath, db := newStateDB(t)

	for i := 0; i < recentEventLimit+5; i++ {
		if _, err := db.Exec(
			`INSERT INTO events (type, lock_scope, lock_file, operation, duration_ms, pid)
			 VALUES ('acquire', 'worktree', '/tmp/a.lock', 'git status', 1, 100)`,
		); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	snap, err := FetchSnapshot(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(snap.Events) != recentEventLimit {
		t.Errorf("Events = %d, want %d", len(snap.Events), recentEventLimit)
	}
}

func TestStateDBPathEnvOverride(t *testing.T) {
	t.Setenv("GITGATE_DB_PATH", "/custom/path/state.db")
	if got := stateDBPath(); got != "/custom/path/state.db" {
		t.Errorf("stateDBPath = %q", got)
	}

	t.Setenv("GITGATE_DB_PATH", "")
	t.Setenv("GITGATE_HOME", "/custom/home")
	if got := stateDBPath(); got != "/custom/home/state.db" {
		t.Errorf("stateDBPath = %q", got)
	}
}
