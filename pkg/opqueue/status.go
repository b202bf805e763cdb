package opqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gitgate/pkg/protocol"
)

// ReadStatus returns the persisted worker status record. The queued
// count is computed live from pending items rather than trusted from
// the row.
func ReadStatus(ctx context.Context, db *sql.DB) (*protocol.QueueStatus, error) {
	row := db.QueryRowContext(ctx,
		`SELECT state, worker_pid, completed, failed, updated_at FROM status WHERE id = 1`)

	var s protocol.QueueStatus
	var state, updatedAt string
	if err := row.Scan(&state, &s.WorkerPID, &s.Completed, &s.Failed, &updatedAt); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	s.State = protocol.QueueState(state)
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		s.UpdatedAt = t
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE status = 'pending'`).Scan(&s.Queued); err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	return &s, nil
}

func setState(ctx context.Context, db *sql.DB, state protocol.QueueState, workerPID int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE status SET state = ?, worker_pid = ?, updated_at = datetime('now') WHERE id = 1`,
		string(state), workerPID)
	if err != nil {
		return fmt.Errorf("set state %s: %w", state, err)
	}
	return nil
}

func bumpCounter(ctx context.Context, db *sql.DB, column string) {
	// column is one of the fixed names "completed"/"failed", never user input.
	_, _ = db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE status SET %s = %s + 1, updated_at = datetime('now') WHERE id = 1`, column, column))
}
