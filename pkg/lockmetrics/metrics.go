// Package lockmetrics records lock lifecycle timing events and
// computes latency percentiles, event counts, and contention hotspots
// over them. The Collector is the single writer for both the metrics
// table and the append-only event log; every other component reads.
package lockmetrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"time"

	"gitgate/pkg/protocol"
)

// Collector appends metric events and analyzes the accumulated series.
type Collector struct {
	db *sql.DB
}

// New returns a Collector writing to db. The schema must already be
// applied.
func New(db *sql.DB) *Collector {
	return &Collector{db: db}
}

// Record appends one event to both the metrics table and the event
// log. A zero timestamp is stamped with the current millisecond clock;
// a zero PID with the recording process's ID.
func (c *Collector) Record(ctx context.Context, e protocol.MetricEvent) error {
	if e.TimestampMs == 0 {
		e.TimestampMs = time.Now().UnixMilli()
	}
	if e.PID == 0 {
		e.PID = os.Getpid()
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO metrics (timestamp, event_type, lock_scope, lock_file, duration_ms, operation, pid)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TimestampMs, string(e.Type), string(e.Scope), e.LockPath, e.DurationMs, e.Operation, e.PID,
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO events (type, lock_scope, lock_file, operation, duration_ms, pid)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.Type), string(e.Scope), e.LockPath, e.Operation, e.DurationMs, e.PID,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// OperationCount pairs an operation with its occurrence count.
type OperationCount struct {
	Operation string
	Count     int
}

// Report summarizes acquire latency and event distribution over a
// trailing window.
type Report struct {
	WindowHours int
	SampleCount int // acquire events in the window
	P50         int64
	P95         int64
	P99         int64
	Avg         float64
	Max         int64
	EventCounts map[protocol.EventType]int
	ScopeCounts map[protocol.LockScope]int
	TopOps      []OperationCount // top 5 by frequency
}

// Analyze computes the latency report over the last windowHours
// (default 24 when 0).
func (c *Collector) Analyze(ctx context.Context, windowHours int) (*Report, error) {
	if windowHours == 0 {
		windowHours = 24
	}
	cutoff := time.Now().Add(-time.Duration(windowHours) * time.Hour).UnixMilli()

	durations, err := c.acquireDurations(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &Report{
		WindowHours: windowHours,
		SampleCount: len(durations),
		EventCounts: make(map[protocol.EventType]int),
		ScopeCounts: make(map[protocol.LockScope]int),
	}

	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		report.P50 = percentile(durations, 50)
		report.P95 = percentile(durations, 95)
		report.P99 = percentile(durations, 99)
		report.Max = durations[len(durations)-1]
		var sum int64
		for _, d := range durations {
			sum += d
		}
		report.Avg = float64(sum) / float64(len(durations))
	}

	if err := c.fillCounts(ctx, cutoff, report); err != nil {
		return nil, err
	}
	return report, nil
}

// percentile selects from the ascending-sorted series at
// index = floor(count × p / 100), clamped to the last element.
// For [10,20,30,40,50]: p50 → index 2 → 30.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (c *Collector) acquireDurations(ctx context.Context, cutoffMs int64) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT duration_ms FROM metrics WHERE event_type = ? AND timestamp >= ?`,
		string(protocol.EventAcquire), cutoffMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query durations: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan duration: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *Collector) fillCounts(ctx context.Context, cutoffMs int64, report *Report) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT event_type, lock_scope, operation FROM metrics WHERE timestamp >= ?`, cutoffMs)
	if err != nil {
		return fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	opCounts := make(map[string]int)
	for rows.Next() {
		var typ, scope, op string
		if err := rows.Scan(&typ, &scope, &op); err != nil {
			return fmt.Errorf("scan counts: %w", err)
		}
		report.EventCounts[protocol.EventType(typ)]++
		report.ScopeCounts[protocol.LockScope(scope)]++
		opCounts[op]++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for op, n := range opCounts {
		report.TopOps = append(report.TopOps, OperationCount{Operation: op, Count: n})
	}
	sort.Slice(report.TopOps, func(i, j int) bool {
		if report.TopOps[i].Count != report.TopOps[j].Count {
			return report.TopOps[i].Count > report.TopOps[j].Count
		}
		return report.TopOps[i].Operation < report.TopOps[j].Operation
	})
	if len(report.TopOps) > 5 {
		report.TopOps = report.TopOps[:5]
	}
	return nil
}

// SlowOperation is one acquire that exceeded the hotspot threshold.
type SlowOperation struct {
	Operation  string
	LockPath   string
	DurationMs int64
}

// ContendedLock pairs a lock path with its wait-event count.
type ContendedLock struct {
	LockPath  string
	WaitCount int
}

// HotspotReport lists slow acquisitions and contended lock paths.
type HotspotReport struct {
	WindowHours    int
	SlowOperations []SlowOperation // acquire duration > threshold, descending
	ContendedLocks []ContendedLock // most wait events first
}

// Hotspots ranks operations whose acquisition exceeded
// SlowAcquireThresholdMs and lock paths with the most wait events,
// over the last windowHours (default 1 when 0).
func (c *Collector) Hotspots(ctx context.Context, windowHours int) (*HotspotReport, error) {
	if windowHours == 0 {
		windowHours = 1
	}
	cutoff := time.Now().Add(-time.Duration(windowHours) * time.Hour).UnixMilli()
	report := &HotspotReport{WindowHours: windowHours}

	rows, err := c.db.QueryContext(ctx,
		`SELECT operation, lock_file, duration_ms FROM metrics
		 WHERE event_type = ? AND timestamp >= ? AND duration_ms > ?
		 ORDER BY duration_ms DESC`,
		string(protocol.EventAcquire), cutoff, protocol.SlowAcquireThresholdMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query slow operations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s SlowOperation
		if err := rows.Scan(&s.Operation, &s.LockPath, &s.DurationMs); err != nil {
			return nil, fmt.Errorf("scan slow operation: %w", err)
		}
		report.SlowOperations = append(report.SlowOperations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	waitRows, err := c.db.QueryContext(ctx,
		`SELECT lock_file, COUNT(*) AS n FROM metrics
		 WHERE event_type = ? AND timestamp >= ?
		 GROUP BY lock_file ORDER BY n DESC`,
		string(protocol.EventWait), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query contended locks: %w", err)
	}
	defer waitRows.Close()
	for waitRows.Next() {
		var l ContendedLock
		if err := waitRows.Scan(&l.LockPath, &l.WaitCount); err != nil {
			return nil, fmt.Errorf("scan contended lock: %w", err)
		}
		report.ContendedLocks = append(report.ContendedLocks, l)
	}
	return report, waitRows.Err()
}

// Recent returns the last n metric events, newest first.
func (c *Collector) Recent(ctx context.Context, n int) ([]protocol.MetricEvent, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, lock_scope, lock_file, duration_ms, operation, pid
		 FROM metrics ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent metrics: %w", err)
	}
	defer rows.Close()

	var out []protocol.MetricEvent
	for rows.Next() {
		var e protocol.MetricEvent
		var typ, scope string
		if err := rows.Scan(&e.ID, &e.TimestampMs, &typ, &scope, &e.LockPath, &e.DurationMs, &e.Operation, &e.PID); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		e.Type = protocol.EventType(typ)
		e.Scope = protocol.LockScope(scope)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes metric and event rows older than retentionDays
// (default 7 when 0). Returns the number of rows removed.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays == 0 {
		retentionDays = protocol.DefaultRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM metrics WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup metrics: %w", err)
	}
	n, _ := res.RowsAffected()

	evRes, err := c.db.ExecContext(ctx,
		`DELETE FROM events WHERE created_at < ?`, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return n, fmt.Errorf("cleanup events: %w", err)
	}
	evN, _ := evRes.RowsAffected()
	return n + evN, nil
}
