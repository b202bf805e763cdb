package protocol

// SchemaDDL defines the SQLite schema for the gitgate state database.
// Tables: queue_items, results, events, metrics, patterns, status.
// Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Pending and in-flight queue submissions
CREATE TABLE IF NOT EXISTS queue_items (
    id INTEGER PRIMARY KEY,
    request_id TEXT NOT NULL UNIQUE,
    priority INTEGER NOT NULL,
    operation TEXT NOT NULL,
    worktree TEXT NOT NULL DEFAULT '',
    submitter_pid INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    submitted_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Completed-operation results, written once by the worker and deleted
-- by the submitter on read
CREATE TABLE IF NOT EXISTS results (
    request_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    exit_code INTEGER NOT NULL DEFAULT 0,
    output TEXT NOT NULL DEFAULT '',
    completed_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Append-only lifecycle event log: timestamp | type | scope | lock_file | operation
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    lock_scope TEXT NOT NULL,
    lock_file TEXT NOT NULL,
    operation TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    pid INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Timing metrics, millisecond-stamped, pruned by retention cleanup
CREATE TABLE IF NOT EXISTS metrics (
    id INTEGER PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    lock_scope TEXT NOT NULL,
    lock_file TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    operation TEXT NOT NULL,
    pid INTEGER NOT NULL
);

-- First-order operation transition counts for the sequence predictor
CREATE TABLE IF NOT EXISTS patterns (
    from_op TEXT NOT NULL,
    to_op TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (from_op, to_op)
);

-- Single-row worker status record
CREATE TABLE IF NOT EXISTS status (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    state TEXT NOT NULL DEFAULT 'stopped',
    worker_pid INTEGER NOT NULL DEFAULT 0,
    queued INTEGER NOT NULL DEFAULT 0,
    completed INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
INSERT OR IGNORE INTO status (id) VALUES (1);
`
