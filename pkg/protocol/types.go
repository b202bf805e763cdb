package protocol

import "time"

// LockScope classifies an operation's exclusivity domain.
type LockScope string

// Lock scope constants.
const (
	// ScopeGlobal covers operations that can mutate shared refs, the
	// object graph, or the worktree registry.
	ScopeGlobal LockScope = "global"
	// ScopeWorktree covers operations confined to one worktree's
	// index and working tree.
	ScopeWorktree LockScope = "worktree"
)

// EventType classifies a row in the metrics/event stream.
type EventType string

// Event type constants.
const (
	EventAcquire         EventType = "acquire"          // lock acquired, operation ran
	EventWait            EventType = "wait"             // acquisition blocked at least one retry tick
	EventTimeout         EventType = "timeout"          // bounded wait exceeded, operation never started
	EventStale           EventType = "stale"            // dead holder reclaimed
	EventLockUnavailable EventType = "lock_unavailable" // degraded mode: no locking primitive
)

// ResultStatus is the terminal status of a queued operation.
type ResultStatus string

// Result status constants.
const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	ResultTimeout ResultStatus = "timeout"
)

// QueueItem is one pending submission to the operation queue.
type QueueItem struct {
	ID           int64
	RequestID    string // globally unique per submission
	Priority     int
	Operation    []string // full git argument list
	Worktree     string   // worktree path; empty = repository root
	SubmitterPID int
	SubmittedAt  time.Time
}

// OperationResult is written once by the worker and read once by the
// submitter, which deletes it.
type OperationResult struct {
	RequestID   string
	Status      ResultStatus
	ExitCode    int
	Output      string // combined output of the git command, verbatim
	CompletedAt time.Time
}

// PatternEntry is one first-order transition in the pattern store.
type PatternEntry struct {
	FromOperation string
	ToOperation   string
	Count         int
}

// MetricEvent is one row of the append-only metrics stream.
type MetricEvent struct {
	ID          int64
	TimestampMs int64
	Type        EventType
	Scope       LockScope
	LockPath    string
	DurationMs  int64
	Operation   string
	PID         int
}

// QueueState is the coarse lifecycle state of the queue worker.
type QueueState string

// Queue state constants.
const (
	StateStopped  QueueState = "stopped"
	StateStarting QueueState = "starting"
	StateRunning  QueueState = "running"
	StateStopping QueueState = "stopping"
)

// QueueStatus is the persisted status record describing the worker.
type QueueStatus struct {
	State     QueueState
	WorkerPID int
	Queued    int
	Completed int
	Failed    int
	UpdatedAt time.Time
}

// Prediction is one advisory next-operation candidate.
type Prediction struct {
	Operation  string
	Confidence float64
	Scope      LockScope
}
