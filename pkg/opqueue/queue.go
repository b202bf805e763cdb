// Package opqueue serializes git operations submitted by concurrent
// worktree sessions through a single long-lived worker. Submissions
// are ordered by priority tier, then by submission order within a
// tier; each dequeued operation executes under the correct advisory
// lock via gitlock, so queued and direct callers contend on the same
// lock files.
package opqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gitgate/pkg/gitlock"
	"gitgate/pkg/protocol"

	"github.com/google/uuid"
)

// Config holds Queue configuration.
type Config struct {
	DB           *sql.DB          // state database (required)
	Locks        *gitlock.Manager // lock manager (required)
	PollInterval time.Duration    // worker dequeue + submitter result poll cadence (default 100ms)
	WaitTimeout  time.Duration    // default WaitForCompletion timeout (default 60s)
	ResultTTL    time.Duration    // unread results older than this are discarded (default 10m)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = protocol.ResultPollInterval
	}
	if out.WaitTimeout == 0 {
		out.WaitTimeout = protocol.DefaultQueueWaitTimeout
	}
	if out.ResultTTL == 0 {
		out.ResultTTL = protocol.ResultTTL
	}
	return out
}

// Queue owns the single worker that drains submitted operations.
type Queue struct {
	cfg Config

	mu    sync.Mutex
	state protocol.QueueState
	stop  chan struct{}
	done  chan struct{}
}

// New returns a stopped Queue over cfg.
func New(cfg Config) *Queue {
	return &Queue{cfg: cfg.withDefaults(), state: protocol.StateStopped}
}

// State returns the in-process lifecycle state.
func (q *Queue) State() protocol.QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Start launches the worker goroutine. Idempotent: starting a running
// queue is a no-op. A persisted status row pointing at a dead worker
// process is discarded automatically rather than blocking the start.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == protocol.StateRunning || q.state == protocol.StateStarting {
		return nil
	}
	q.state = protocol.StateStarting

	// Self-heal: a previous worker that died without cleanup leaves a
	// running status row behind.
	if st, err := ReadStatus(ctx, q.cfg.DB); err == nil {
		if st.State == protocol.StateRunning && st.WorkerPID != os.Getpid() && gitlock.IsProcessAlive(st.WorkerPID) {
			q.state = protocol.StateStopped
			return &protocol.QueueUnavailableError{
				Reason: fmt.Sprintf("worker already running (pid %d)", st.WorkerPID),
			}
		}
	}

	// Recover items a dead worker claimed but never finished: a crash
	// between claim and result leaves them stuck in 'processing'. No
	// live worker owns them at this point, so they re-enter the queue
	// in their original order rather than being dropped.
	if _, err := q.cfg.DB.ExecContext(ctx,
		`UPDATE queue_items SET status = 'pending' WHERE status = 'processing'`); err != nil {
		q.state = protocol.StateStopped
		return fmt.Errorf("recover claimed items: %w", err)
	}

	if err := setState(ctx, q.cfg.DB, protocol.StateRunning, os.Getpid()); err != nil {
		q.state = protocol.StateStopped
		return err
	}

	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.state = protocol.StateRunning
	go q.runWorker(q.stop, q.done)
	return nil
}

// Stop shuts the worker down and waits for the in-flight operation to
// finish. Idempotent.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.state != protocol.StateRunning {
		q.mu.Unlock()
		return nil
	}
	q.state = protocol.StateStopping
	close(q.stop)
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}

	q.mu.Lock()
	q.state = protocol.StateStopped
	q.mu.Unlock()
	return setState(ctx, q.cfg.DB, protocol.StateStopped, 0)
}

// Enqueue submits a git operation and returns its request ID. It
// fails with *protocol.QueueUnavailableError when no live worker
// exists — submissions are never silently dropped.
func (q *Queue) Enqueue(ctx context.Context, priority int, gitArgs []string, worktree string) (string, error) {
	if len(gitArgs) == 0 {
		return "", errors.New("opqueue: empty operation")
	}
	if err := q.checkWorkerAvailable(ctx); err != nil {
		return "", err
	}

	encoded, err := protocol.EncodeArgs(gitArgs)
	if err != nil {
		return "", err
	}

	requestID := uuid.NewString()
	_, err = q.cfg.DB.ExecContext(ctx,
		`INSERT INTO queue_items (request_id, priority, operation, worktree, submitter_pid)
		 VALUES (?, ?, ?, ?, ?)`,
		requestID, priority, encoded, worktree, os.Getpid(),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return requestID, nil
}

// checkWorkerAvailable accepts submissions when this process hosts a
// running worker or the persisted status row names a live one.
func (q *Queue) checkWorkerAvailable(ctx context.Context) error {
	if q.State() == protocol.StateRunning {
		return nil
	}
	st, err := ReadStatus(ctx, q.cfg.DB)
	if err != nil {
		return &protocol.QueueUnavailableError{Reason: err.Error()}
	}
	if st.State != protocol.StateRunning {
		return &protocol.QueueUnavailableError{Reason: "worker not running; start it with `gitgate queue start`"}
	}
	if !gitlock.IsProcessAlive(st.WorkerPID) {
		// Dead worker left a running record. Discard it so the next
		// start is unblocked, and reject the submission explicitly.
		_ = setState(ctx, q.cfg.DB, protocol.StateStopped, 0)
		return &protocol.QueueUnavailableError{Reason: fmt.Sprintf("worker pid %d is dead", st.WorkerPID)}
	}
	return nil
}

// WaitForCompletion polls for the result of requestID at the fixed
// poll cadence, up to timeout (0 = config default). The result row is
// deleted on read. When the timeout elapses first a ResultTimeout
// result is returned; the worker still finishes the operation and the
// unread result is discarded after the TTL.
func (q *Queue) WaitForCompletion(ctx context.Context, requestID string, timeout time.Duration) (*protocol.OperationResult, error) {
	if timeout == 0 {
		timeout = q.cfg.WaitTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		res, err := q.takeResult(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			return &protocol.OperationResult{
				RequestID:   requestID,
				Status:      protocol.ResultTimeout,
				ExitCode:    1,
				CompletedAt: time.Now(),
			}, nil
		}
		select {
		case <-ctx.Done():
		case <-time.After(q.cfg.PollInterval):
		}
	}
}

// takeResult reads and deletes the result row in one transaction
// (single-writer/single-reader contract). Returns nil when no result
// exists yet.
func (q *Queue) takeResult(ctx context.Context, requestID string) (*protocol.OperationResult, error) {
	tx, err := q.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("take result: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT status, exit_code, output, completed_at FROM results WHERE request_id = ?`, requestID)

	var res protocol.OperationResult
	var status, completedAt string
	err = row.Scan(&status, &res.ExitCode, &res.Output, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}
	res.RequestID = requestID
	res.Status = protocol.ResultStatus(status)
	if t, err := time.Parse("2006-01-02 15:04:05", completedAt); err == nil {
		res.CompletedAt = t
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE request_id = ?`, requestID); err != nil {
		return nil, fmt.Errorf("consume result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit result read: %w", err)
	}
	return &res, nil
}

// --- Worker loop ---

func (q *Queue) runWorker(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()
	lastTTLSweep := time.Now()

	for {
		select {
		case <-stop:
			return
		default:
		}

		item, ok := q.claimNext(ctx)
		if !ok {
			// Idle: discard expired unread results occasionally, then wait.
			if time.Since(lastTTLSweep) > q.cfg.ResultTTL/2 {
				q.discardExpiredResults(ctx)
				lastTTLSweep = time.Now()
			}
			select {
			case <-stop:
				return
			case <-time.After(q.cfg.PollInterval):
			}
			continue
		}

		q.process(ctx, item)
	}
}

// claimNext dequeues the highest-priority oldest pending item. The
// single worker owns the queue, so SELECT-then-UPDATE needs no claim
// transaction.
func (q *Queue) claimNext(ctx context.Context) (*protocol.QueueItem, bool) {
	row := q.cfg.DB.QueryRowContext(ctx,
		`SELECT id, request_id, priority, operation, worktree, submitter_pid, submitted_at
		 FROM queue_items WHERE status = 'pending'
		 ORDER BY priority DESC, id ASC LIMIT 1`)

	var item protocol.QueueItem
	var encoded, submitted string
	err := row.Scan(&item.ID, &item.RequestID, &item.Priority, &encoded, &item.Worktree, &item.SubmitterPID, &submitted)
	if err != nil {
		return nil, false
	}
	item.SubmittedAt, _ = time.Parse("2006-01-02 15:04:05", submitted)

	args, err := protocol.DecodeArgs(encoded)
	if err != nil {
		// Poison item: fail it rather than wedging the queue.
		q.finish(ctx, &item, &protocol.OperationResult{
			Status: protocol.ResultFailed, ExitCode: 1, Output: err.Error(),
		})
		return nil, false
	}
	item.Operation = args

	_, _ = q.cfg.DB.ExecContext(ctx,
		`UPDATE queue_items SET status = 'processing' WHERE id = ?`, item.ID)
	return &item, true
}

// process runs one item under its lock and records the outcome.
func (q *Queue) process(ctx context.Context, item *protocol.QueueItem) {
	res, err := q.cfg.Locks.Run(ctx, item.Worktree, item.Operation)

	var out *protocol.OperationResult
	switch {
	case err == nil:
		out = res
	case res != nil:
		// Non-zero git exit: exit code and output propagate verbatim.
		out = res
	default:
		out = &protocol.OperationResult{ExitCode: 1, Output: err.Error(), Status: protocol.ResultFailed}
		var timeoutErr *protocol.LockTimeoutError
		if errors.As(err, &timeoutErr) {
			out.Status = protocol.ResultTimeout
		}
	}

	q.finish(ctx, item, out)
}

// finish writes the result row, removes the queue item, and bumps the
// status counters.
func (q *Queue) finish(ctx context.Context, item *protocol.QueueItem, res *protocol.OperationResult) {
	_, _ = q.cfg.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (request_id, status, exit_code, output) VALUES (?, ?, ?, ?)`,
		item.RequestID, string(res.Status), res.ExitCode, res.Output)
	_, _ = q.cfg.DB.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, item.ID)

	if res.Status == protocol.ResultSuccess {
		bumpCounter(ctx, q.cfg.DB, "completed")
	} else {
		bumpCounter(ctx, q.cfg.DB, "failed")
	}
}

// discardExpiredResults drops result rows no submitter ever read.
func (q *Queue) discardExpiredResults(ctx context.Context) {
	cutoff := time.Now().Add(-q.cfg.ResultTTL).UTC().Format("2006-01-02 15:04:05")
	_, _ = q.cfg.DB.ExecContext(ctx, `DELETE FROM results WHERE completed_at < ?`, cutoff)
}

// Run starts the queue and blocks until ctx is cancelled, then stops
// it. This is the entry point for the daemonized worker process.
func (q *Queue) Run(ctx context.Context) error {
	if err := q.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return q.Stop(stopCtx)
}
