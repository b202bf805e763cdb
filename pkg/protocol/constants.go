package protocol

import "time"

// Directory and path constants used throughout gitgate.
const (
	// GitgateDir is the user-level state directory (e.g., ~/.gitgate).
	GitgateDir = ".gitgate"

	// LocksDir is the directory (under GitgateDir) holding lock files.
	LocksDir = "locks"

	// GlobalLockFile is the lock file guarding repository-wide operations.
	GlobalLockFile = "global.lock"
)

// Priority tiers for queued operations. Higher dequeues first;
// submission order breaks ties within a tier.
const (
	PriorityUser         = 10 // interactive callers
	PriorityOrchestrator = 8  // session orchestrator
	PriorityBackground   = 5  // background maintenance
	PriorityMetrics      = 3  // metrics/analysis jobs
	PriorityCleanup      = 1  // retention cleanup
)

// Default tuning values. Each is overridable via config or per call.
const (
	// DefaultLockTimeout bounds a single lock acquisition attempt.
	DefaultLockTimeout = 30 * time.Second

	// DefaultQueueWaitTimeout bounds a submitter's wait for its result.
	DefaultQueueWaitTimeout = 60 * time.Second

	// ResultPollInterval is the fixed cadence at which submitters poll
	// for their result row.
	ResultPollInterval = 100 * time.Millisecond

	// DefaultRetentionDays is the metrics/event retention window.
	DefaultRetentionDays = 7

	// DefaultConfidenceThreshold gates predictor output.
	DefaultConfidenceThreshold = 0.70

	// DefaultLookahead is the maximum number of predictions returned.
	DefaultLookahead = 3

	// DefaultLearnWindow is how many recent completed operations a
	// learning pass scans.
	DefaultLearnWindow = 100

	// SlowAcquireThresholdMs marks an acquisition as a hotspot.
	SlowAcquireThresholdMs = 1000

	// ResultTTL is how long an unread result row survives before the
	// worker discards it.
	ResultTTL = 10 * time.Minute
)
