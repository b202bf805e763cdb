package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"time"

	"gitgate/pkg/gitlock"
	"gitgate/pkg/lockmetrics"
	"gitgate/pkg/opqueue"
	"gitgate/pkg/protocol"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newQueueCmd creates the "gitgate queue" command group.
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the operation queue worker",
		Long:  "The queue serializes git operations from all worktrees through a\nsingle worker that executes each under the correct lock.",
	}

	cmd.AddCommand(
		newQueueStartCmd(),
		newQueueStopCmd(),
		newQueueRestartCmd(),
		newQueueStatusCmd(),
		newQueueEnqueueCmd(),
		newQueueWorkerCmd(),
	)
	return cmd
}

// runtime bundles the wired coordinator components for one command
// invocation.
type runtime struct {
	paths   *Paths
	cfg     *Config
	db      *sql.DB
	metrics *lockmetrics.Collector
	locks   *gitlock.Manager
	queue   *opqueue.Queue
}

// buildRuntime resolves paths/config and wires the state DB, metrics
// collector, lock manager, and queue together. The caller closes
// rt.db.
func buildRuntime() (*runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureHome(); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(paths.ConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := openDB(paths.DBPath)
	if err != nil {
		return nil, err
	}

	metrics := lockmetrics.New(db)
	locks, err := gitlock.NewManager(gitlock.Config{
		LockDir: paths.LockDir,
		Timeout: cfg.LockTimeout(),
		Sink:    metrics,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &runtime{
		paths:   paths,
		cfg:     cfg,
		db:      db,
		metrics: metrics,
		locks:   locks,
		queue: opqueue.New(opqueue.Config{
			DB:          db,
			Locks:       locks,
			WaitTimeout: cfg.QueueWaitTimeout(),
		}),
	}, nil
}

func (rt *runtime) close() {
	_ = rt.db.Close()
}

// WorkerSpawner abstracts spawning the worker subprocess for testability.
type WorkerSpawner interface {
	SpawnWorker() (pid int, err error)
}

// ExecWorkerSpawner spawns a real child process running `gitgate queue worker`.
type ExecWorkerSpawner struct{}

// SpawnWorker forks a child process running the current binary as the
// queue worker.
func (e *ExecWorkerSpawner) SpawnWorker() (int, error) {
	child := exec.CommandContext(context.Background(), os.Args[0], "queue", "worker") //nolint:gosec // intentionally re-executing self
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("spawn worker: %w", err)
	}
	return child.Process.Pid, nil
}

func newQueueStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the queue worker",
		Long:  "Starts the single queue worker process. Idempotent: a running\nworker is left alone; a stale PID record is discarded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueStart(cmd, foreground, &ExecWorkerSpawner{})
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "run the worker in this process instead of daemonizing")
	return cmd
}

func runQueueStart(cmd *cobra.Command, foreground bool, spawner WorkerSpawner) error {
	paths, err := ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.EnsureHome(); err != nil {
		return err
	}

	status, pid, err := DaemonStatus(paths.PIDPath)
	if err != nil {
		return err
	}
	switch status {
	case StatusRunning:
		fmt.Fprintf(cmd.OutOrStdout(), "queue worker already running (pid %d)\n", pid)
		return nil
	case StatusStale:
		// Dead worker left its PID file behind; discard and continue.
		fmt.Fprintf(cmd.OutOrStdout(), "discarding stale PID record (pid %d)\n", pid)
		if err := RemovePIDFile(paths.PIDPath); err != nil {
			return err
		}
	case StatusStopped:
	}

	if foreground {
		return runWorker(cmd, nil)
	}

	childPID, err := spawner.SpawnWorker()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queue worker started (pid %d)\n", childPID)
	return nil
}

func newQueueWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run the queue worker loop (internal)",
		Hidden: true,
		RunE:   runWorker,
	}
}

// runWorker is the long-lived worker process body: PID file, signal
// handling, and the dequeue loop until SIGTERM/SIGINT.
func runWorker(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := WritePIDFile(rt.paths.PIDPath, os.Getpid()); err != nil {
		return err
	}
	ctx, cleanup := SetupSignalHandler(cmd.Context(), rt.paths.PIDPath)
	defer cleanup()

	return rt.queue.Run(ctx)
}

func newQueueStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueStop(cmd)
		},
	}
}

func runQueueStop(cmd *cobra.Command) error {
	paths, err := ResolvePaths()
	if err != nil {
		return err
	}

	status, pid, err := DaemonStatus(paths.PIDPath)
	if err != nil {
		return err
	}
	switch status {
	case StatusStopped:
		fmt.Fprintln(cmd.OutOrStdout(), "queue worker not running")
		return nil
	case StatusStale:
		fmt.Fprintf(cmd.OutOrStdout(), "removing stale PID record (pid %d)\n", pid)
		return RemovePIDFile(paths.PIDPath)
	case StatusRunning:
	}

	if err := StopDaemon(paths.PIDPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent SIGTERM to queue worker (pid %d)\n", pid)
	return nil
}

func newQueueRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runQueueStop(cmd); err != nil {
				return err
			}
			if err := waitForWorkerExit(5 * time.Second); err != nil {
				return err
			}
			return runQueueStart(cmd, false, &ExecWorkerSpawner{})
		},
	}
}

// waitForWorkerExit polls until the PID file's process dies or is gone.
func waitForWorkerExit(timeout time.Duration) error {
	paths, err := ResolvePaths()
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, _, err := DaemonStatus(paths.PIDPath)
		if err != nil {
			return err
		}
		if status != StatusRunning {
			return nil
		}
		time.Sleep(protocol.ResultPollInterval)
	}
	return fmt.Errorf("worker did not exit within %s", timeout)
}

func newQueueStatusCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			st, err := opqueue.ReadStatus(cmd.Context(), rt.db)
			if err != nil {
				return err
			}
			daemonState, pid, err := DaemonStatus(rt.paths.PIDPath)
			if err != nil {
				return err
			}

			if asYAML {
				return writeStatusYAML(cmd, st, daemonState, pid)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:     %s (daemon %s", st.State, daemonState)
			if pid != 0 {
				fmt.Fprintf(out, ", pid %d", pid)
			}
			fmt.Fprintln(out, ")")
			fmt.Fprintf(out, "queued:    %d\n", st.Queued)
			fmt.Fprintf(out, "completed: %d\n", st.Completed)
			fmt.Fprintf(out, "failed:    %d\n", st.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "machine-readable YAML output")
	return cmd
}

// statusDoc is the YAML shape of `queue status --yaml`.
type statusDoc struct {
	State     string `yaml:"state"`
	Daemon    string `yaml:"daemon"`
	WorkerPID int    `yaml:"worker_pid"`
	Queued    int    `yaml:"queued"`
	Completed int    `yaml:"completed"`
	Failed    int    `yaml:"failed"`
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

func writeStatusYAML(cmd *cobra.Command, st *protocol.QueueStatus, daemonState DaemonStatusValue, pid int) error {
	doc := statusDoc{
		State:     string(st.State),
		Daemon:    string(daemonState),
		WorkerPID: pid,
		Queued:    st.Queued,
		Completed: st.Completed,
		Failed:    st.Failed,
	}
	if !st.UpdatedAt.IsZero() {
		doc.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newQueueEnqueueCmd() *cobra.Command {
	var (
		priority    int
		worktree    string
		wait        bool
		waitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "enqueue [flags] -- <git args>",
		Short: "Submit a git operation to the queue",
		Long: "Submits a git operation for serialized execution, e.g.:\n" +
			"  gitgate queue enqueue --worktree .worktrees/task-1 -- commit -m \"msg\"",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			requestID, err := rt.queue.Enqueue(cmd.Context(), priority, args, worktree)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), requestID)

			if !wait {
				return nil
			}
			res, err := rt.queue.WaitForCompletion(cmd.Context(), requestID, waitTimeout)
			if err != nil {
				return err
			}
			if res.Output != "" {
				fmt.Fprint(cmd.OutOrStdout(), res.Output)
			}
			if res.Status != protocol.ResultSuccess {
				return fmt.Errorf("operation %s: %s (exit %d)",
					requestID, res.Status, res.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&priority, "priority", protocol.PriorityUser,
		fmt.Sprintf("priority tier (%d user, %d orchestrator, %d background, %d metrics, %d cleanup)",
			protocol.PriorityUser, protocol.PriorityOrchestrator, protocol.PriorityBackground,
			protocol.PriorityMetrics, protocol.PriorityCleanup))
	cmd.Flags().StringVar(&worktree, "worktree", "", "worktree path the operation runs in")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the operation completes")
	cmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "wait timeout (default from config)")
	return cmd
}
