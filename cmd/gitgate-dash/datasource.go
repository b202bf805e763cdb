package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gitgate/pkg/eventlog"
	"gitgate/pkg/lockmetrics"
	"gitgate/pkg/opqueue"
	"gitgate/pkg/protocol"

	_ "modernc.org/sqlite"
)

// recentEventLimit bounds the events panel.
const recentEventLimit = 15

// Snapshot is one refresh of everything the dashboard renders.
type Snapshot struct {
	Status   *protocol.QueueStatus
	Events   []eventlog.Event
	Hotspots *lockmetrics.HotspotReport
}

// stateDBPath returns the state database path from env or ~/.gitgate/state.db.
func stateDBPath() string {
	if v := os.Getenv("GITGATE_DB_PATH"); v != "" {
		return v
	}
	base := os.Getenv("GITGATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, protocol.GitgateDir)
	}
	return filepath.Join(base, "state.db")
}

// FetchSnapshot reads the worker status, recent lifecycle events, and
// hotspot ranking from the state database at dbPath in one pass.
//
// Error cases:
//   - dbPath does not exist or is not a valid sqlite DB → returns error
//     (dashboard renders the offline state)
//   - SQL query error → returns error
func FetchSnapshot(ctx context.Context, dbPath string) (*Snapshot, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("state db not found: %w", err)
	}

	// Read-only with WAL so the dashboard never blocks the queue worker.
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", dbPath, err)
	}
	defer db.Close() //nolint:errcheck // best-effort close on read-only query path

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping state db %s: %w", dbPath, err)
	}

	status, err := opqueue.ReadStatus(ctx, db)
	if err != nil {
		return nil, err
	}

	events, err := eventlog.NewReaderFromDB(db).Query(ctx, eventlog.QueryOpts{Limit: recentEventLimit})
	if err != nil {
		return nil, err
	}

	hotspots, err := lockmetrics.New(db).Hotspots(ctx, 1)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Status: status, Events: events, Hotspots: hotspots}, nil
}
