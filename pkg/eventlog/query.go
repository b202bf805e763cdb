// Package eventlog provides read-only access to the coordinator's
// SQLite event log. It backs the sequence predictor, the dashboard,
// and ad-hoc queries over lock lifecycle history.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"gitgate/pkg/protocol"

	_ "modernc.org/sqlite" // SQLite driver
)

// Event represents a single row from the lifecycle event log.
type Event struct {
	ID         int64
	Type       protocol.EventType
	Scope      protocol.LockScope
	LockPath   string
	Operation  string
	DurationMs int64
	PID        int
	CreatedAt  time.Time
}

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	// EventType filters to a specific event type (e.g., "acquire", "wait")
	EventType protocol.EventType

	// Scope filters to one lock scope
	Scope protocol.LockScope

	// After filters events created after this time (inclusive)
	After *time.Time

	// Before filters events created before this time (inclusive)
	Before *time.Time

	// Limit restricts the number of results (0 = no limit)
	Limit int
}

// Reader provides read-only access to the event log.
type Reader struct {
	db *sql.DB
}

// NewReader opens the state database in read-only mode with WAL,
// so readers never block the queue worker.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Reader{db: db}, nil
}

// NewReaderFromDB wraps an already-open handle. The caller keeps
// ownership of db.
func NewReaderFromDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Close releases the database connection. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query retrieves events matching the given filter criteria, newest
// first. Returns an empty slice if no events match.
func (r *Reader) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// RecentOperations returns the operation descriptions of the last n
// completed (acquire) events in completion order, oldest first. This
// is the series the sequence predictor learns from.
func (r *Reader) RecentOperations(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = protocol.DefaultLearnWindow
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT operation FROM (
		     SELECT id, operation FROM events WHERE type = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		string(protocol.EventAcquire), n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent operations: %w", err)
	}
	defer rows.Close()

	var ops []string
	for rows.Next() {
		var op string
		if err := rows.Scan(&op); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var e Event
	var typ, scope, createdAtStr string

	err := rows.Scan(&e.ID, &typ, &scope, &e.LockPath, &e.Operation, &e.DurationMs, &e.PID, &createdAtStr)
	if err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Type = protocol.EventType(typ)
	e.Scope = protocol.LockScope(scope)

	// Parse ISO8601 timestamp from SQLite
	if createdAtStr != "" {
		parsed, err := time.Parse("2006-01-02 15:04:05", createdAtStr)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, createdAtStr)
			if err != nil {
				return Event{}, fmt.Errorf("parse created_at: %w", err)
			}
		}
		e.CreatedAt = parsed
	}
	return e, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, lock_scope, lock_file, operation, duration_ms, pid, created_at FROM events WHERE 1=1"

	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(opts.EventType))
	}
	if opts.Scope != "" {
		conditions = append(conditions, "lock_scope = ?")
		args = append(args, string(opts.Scope))
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}
