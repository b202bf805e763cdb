package gitlock

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"gitgate/pkg/lockscope"
	"gitgate/pkg/protocol"
)

// CommandRunner executes an external command in a directory and
// returns its combined output and exit code. err is non-nil only for
// failures to run at all (not for non-zero exits).
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (output []byte, exitCode int, err error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its combined stdout+stderr.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return out, 1, fmt.Errorf("run %s: %w", name, err)
	}
	return out, 0, nil
}

// Run executes a git operation under the correct lock: it classifies
// the argument list, resolves the lock path (shared with every other
// caller, queued or direct), acquires with the manager's timeout, runs
// git with the worktree as working directory, and releases on every
// exit path.
//
// On lock timeout the git command is never started and the error is a
// *protocol.LockTimeoutError. A non-zero git exit is returned as a
// *protocol.OperationError with exit code and output verbatim.
func (m *Manager) Run(ctx context.Context, worktree string, gitArgs []string) (*protocol.OperationResult, error) {
	return m.RunWithTimeout(ctx, worktree, gitArgs, 0)
}

// RunWithTimeout is Run with a per-call lock acquisition timeout
// (0 = manager default).
func (m *Manager) RunWithTimeout(ctx context.Context, worktree string, gitArgs []string, timeout time.Duration) (*protocol.OperationResult, error) {
	scope := lockscope.ClassifyArgs(gitArgs)
	lockPath := m.LockPathFor(scope, worktree)
	operation := protocol.FormatOperation(gitArgs)

	handle, err := m.Acquire(ctx, lockPath, scope, operation, timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = handle.Release() }()

	dir := worktree
	if dir == "" {
		dir = "."
	}

	out, exitCode, err := m.cfg.Runner.Run(ctx, dir, "git", gitArgs...)
	if err != nil {
		return &protocol.OperationResult{
			Status:      protocol.ResultFailed,
			ExitCode:    exitCode,
			Output:      string(out),
			CompletedAt: time.Now(),
		}, fmt.Errorf("exec %s: %w", operation, err)
	}

	result := &protocol.OperationResult{
		Status:      protocol.ResultSuccess,
		ExitCode:    exitCode,
		Output:      string(out),
		CompletedAt: time.Now(),
	}
	if exitCode != 0 {
		result.Status = protocol.ResultFailed
		return result, &protocol.OperationError{
			Operation: operation,
			ExitCode:  exitCode,
			Output:    string(out),
		}
	}
	return result, nil
}
