package protocol

import "fmt"

// LockTimeoutError means the bounded wait on a lock was exceeded.
// The wrapped operation was never started. It enables typed error
// discrimination via errors.As.
type LockTimeoutError struct {
	Scope     LockScope
	LockPath  string
	Operation string
	Timeout   string // human-readable timeout, e.g. "30s"
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock timeout after %s (%s scope, %s) while attempting: %s",
		e.Timeout, e.Scope, e.LockPath, e.Operation)
}

// LockUnavailableError means no advisory-locking primitive exists on
// this platform. The operation still runs, without exclusivity; the
// degradation is logged, never silent.
type LockUnavailableError struct {
	LockPath string
	Reason   string
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("advisory locking unavailable for %s: %s", e.LockPath, e.Reason)
}

// QueueUnavailableError means a submission arrived while no live
// worker was running. The caller must start the worker or fail
// explicitly; submissions are never silently dropped.
type QueueUnavailableError struct {
	Reason string
}

func (e *QueueUnavailableError) Error() string {
	return fmt.Sprintf("operation queue unavailable: %s", e.Reason)
}

// OperationError means the wrapped git command itself returned
// non-zero. Exit code and captured output are propagated verbatim,
// untouched by the coordinator.
type OperationError struct {
	Operation string
	ExitCode  int
	Output    string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("git operation failed (exit %d): %s", e.ExitCode, e.Operation)
}
