// Package gitlock serializes git operations with per-path advisory
// file locks. One lock file guards the whole repository (global
// scope); one lock file per worktree guards that worktree's index and
// tree. Queued and direct callers resolve the same lock paths, so the
// two tiers can never race each other.
package gitlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitgate/pkg/protocol"
)

var errWouldBlock = errors.New("lock held by another process")

// holderInfo is the JSON payload written into a held lock file so that
// contenders can identify (and stale-check) the current holder.
type holderInfo struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquired_at"`
	Operation  string `json:"operation"`
}

// Handle represents one held lock. At most one Handle exists per lock
// path at a time; Release is idempotent.
type Handle struct {
	LockPath   string
	Scope      protocol.LockScope
	AcquiredAt time.Time
	Operation  string
	Degraded   bool // true when no locking primitive was available

	file *os.File
}

// Release drops the lock. Safe on every exit path and safe to call
// more than once.
func (h *Handle) Release() error {
	if h == nil || h.file == nil {
		return nil
	}
	f := h.file
	h.file = nil

	// Clear holder info so contenders don't stale-check a released lock.
	_ = f.Truncate(0)
	if err := unflock(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("release lock %s: %w", h.LockPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close lock file %s: %w", h.LockPath, err)
	}
	return nil
}

// EventSink receives lock lifecycle events (acquire, wait, timeout,
// stale, lock_unavailable). The metrics collector is the production
// implementation.
type EventSink interface {
	Record(ctx context.Context, e protocol.MetricEvent) error
}

// nopSink discards events; used when no collector is wired.
type nopSink struct{}

func (nopSink) Record(context.Context, protocol.MetricEvent) error { return nil }

// Config holds Manager configuration.
type Config struct {
	LockDir string        // directory holding lock files (required)
	Timeout time.Duration // default acquisition timeout (default 30s)
	Sink    EventSink     // lifecycle event sink (default discard)
	Runner  CommandRunner // git executor (default ExecRunner)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout == 0 {
		out.Timeout = protocol.DefaultLockTimeout
	}
	if out.Sink == nil {
		out.Sink = nopSink{}
	}
	if out.Runner == nil {
		out.Runner = &ExecRunner{}
	}
	return out
}

// Manager acquires and releases advisory locks and runs git operations
// under them.
type Manager struct {
	cfg Config
}

// NewManager returns a Manager using cfg with defaults applied.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.LockDir == "" {
		return nil, errors.New("gitlock: LockDir is required")
	}
	if err := os.MkdirAll(cfg.LockDir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir %s: %w", cfg.LockDir, err)
	}
	return &Manager{cfg: cfg.withDefaults()}, nil
}

// GlobalLockPath returns the repository-wide lock file path.
func (m *Manager) GlobalLockPath() string {
	return filepath.Join(m.cfg.LockDir, protocol.GlobalLockFile)
}

// WorktreeLockPath returns the lock file path for one worktree. The
// worktree path is sanitized into a stable file name; an FNV suffix
// keeps distinct paths from colliding after sanitization.
func (m *Manager) WorktreeLockPath(worktree string) string {
	if worktree == "" {
		return m.GlobalLockPath()
	}
	name := sanitizeName(filepath.Base(worktree))
	h := fnv.New32a()
	_, _ = h.Write([]byte(worktree))
	return filepath.Join(m.cfg.LockDir, fmt.Sprintf("wt-%s-%08x.lock", name, h.Sum32()))
}

// LockPathFor resolves the lock path for a scope + worktree pair.
func (m *Manager) LockPathFor(scope protocol.LockScope, worktree string) string {
	if scope == protocol.ScopeWorktree {
		return m.WorktreeLockPath(worktree)
	}
	return m.GlobalLockPath()
}

func sanitizeName(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
	if mapped == "" {
		mapped = "root"
	}
	return mapped
}

// Acquire takes the lock at lockPath, waiting up to timeout (0 = the
// manager default). The lock file is created lazily. A lock file whose
// recorded holder process is dead is reclaimed automatically and
// counted as a stale event — never surfaced as a caller error.
//
// On timeout the returned error is a *protocol.LockTimeoutError; the
// caller's operation must not run. On platforms without an advisory
// locking primitive the returned Handle has Degraded=true and a
// lock_unavailable event is recorded: the caller proceeds unlocked,
// loudly.
func (m *Manager) Acquire(ctx context.Context, lockPath string, scope protocol.LockScope, operation string, timeout time.Duration) (*Handle, error) {
	if timeout == 0 {
		timeout = m.cfg.Timeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	m.reclaimIfStale(ctx, lockPath, scope, operation)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // lock path is derived from config, not user input
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	waited := false
	for {
		err := tryFlock(f)
		if err == nil {
			break
		}
		var unavail *protocol.LockUnavailableError
		if errors.As(err, &unavail) {
			_ = f.Close()
			m.record(ctx, protocol.EventLockUnavailable, scope, lockPath, 0, operation)
			return &Handle{
				LockPath:   lockPath,
				Scope:      scope,
				AcquiredAt: time.Now(),
				Operation:  operation,
				Degraded:   true,
			}, nil
		}
		if !errors.Is(err, errWouldBlock) {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}

		if !waited {
			waited = true
			m.record(ctx, protocol.EventWait, scope, lockPath, time.Since(start).Milliseconds(), operation)
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			_ = f.Close()
			m.record(ctx, protocol.EventTimeout, scope, lockPath, time.Since(start).Milliseconds(), operation)
			return nil, &protocol.LockTimeoutError{
				Scope:     scope,
				LockPath:  lockPath,
				Operation: operation,
				Timeout:   timeout.String(),
			}
		}

		select {
		case <-ctx.Done():
			// Loop once more to produce the timeout error above.
		case <-time.After(protocol.ResultPollInterval):
		}
	}

	now := time.Now()
	writeHolderInfo(f, holderInfo{
		PID:        os.Getpid(),
		AcquiredAt: now.UTC().Format(time.RFC3339),
		Operation:  operation,
	})

	m.record(ctx, protocol.EventAcquire, scope, lockPath, time.Since(start).Milliseconds(), operation)

	return &Handle{
		LockPath:   lockPath,
		Scope:      scope,
		AcquiredAt: now,
		Operation:  operation,
		file:       f,
	}, nil
}

// reclaimIfStale checks the lock file's recorded holder and records a
// stale event when the holder process is dead. With flock the dead
// holder's lock is already released by the kernel; the event keeps the
// reclaim visible in metrics.
func (m *Manager) reclaimIfStale(ctx context.Context, lockPath string, scope protocol.LockScope, operation string) {
	data, err := os.ReadFile(lockPath) //nolint:gosec // lock path is derived from config
	if err != nil || len(data) == 0 {
		return
	}
	var info holderInfo
	if err := json.Unmarshal(data, &info); err != nil || info.PID == 0 {
		return
	}
	if IsProcessAlive(info.PID) {
		return
	}
	// Holder is gone. Clear the record so the next contender doesn't
	// repeat the check, and count the reclaim.
	_ = os.Truncate(lockPath, 0)
	m.record(ctx, protocol.EventStale, scope, lockPath, 0, operation)
}

func writeHolderInfo(f *os.File, info holderInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	_ = f.Truncate(0)
	_, _ = f.WriteAt(data, 0)
	_ = f.Sync()
}

func (m *Manager) record(ctx context.Context, typ protocol.EventType, scope protocol.LockScope, lockPath string, durationMs int64, operation string) {
	_ = m.cfg.Sink.Record(ctx, protocol.MetricEvent{
		TimestampMs: time.Now().UnixMilli(),
		Type:        typ,
		Scope:       scope,
		LockPath:    lockPath,
		DurationMs:  durationMs,
		Operation:   operation,
		PID:         os.Getpid(),
	})
}
