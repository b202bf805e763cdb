package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"gitgate/pkg/protocol"

	"github.com/spf13/cobra"
)

// fakeSpawner records spawn calls without forking.
type fakeSpawner struct {
	pid    int
	err    error
	called int
}

func (f *fakeSpawner) SpawnWorker() (int, error) {
	f.called++
	return f.pid, f.err
}

// setHome points all state paths at a fresh temp dir.
func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GITGATE_HOME", home)
	t.Setenv("GITGATE_PID_PATH", "")
	t.Setenv("GITGATE_DB_PATH", "")
	t.Setenv("GITGATE_LOCK_DIR", "")
	return home
}

func testCmd(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}

func TestQueueStartSpawnsWorker(t *testing.T) {
	setHome(t)
	cmd, buf := testCmd(t)
	spawner := &fakeSpawner{pid: 5555}

	if err := runQueueStart(cmd, false, spawner); err != nil {
		t.Fatalf("runQueueStart failed: %v", err)
	}
	if spawner.called != 1 {
		t.Errorf("spawner called %d times, want 1", spawner.called)
	}
	if !strings.Contains(buf.String(), "5555") {
		t.Errorf("output missing child pid: %s", buf.String())
	}
}

func TestQueueStartIsIdempotentWhenRunning(t *testing.T) {
	home := setHome(t)
	cmd, buf := testCmd(t)

	// A live worker: record our own PID.
	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WritePIDFile(paths.PIDPath, os.Getpid()); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	spawner := &fakeSpawner{pid: 5555}
	if err := runQueueStart(cmd, false, spawner); err != nil {
		t.Fatalf("runQueueStart failed: %v", err)
	}
	if spawner.called != 0 {
		t.Error("must not spawn a second worker while one is running")
	}
	if !strings.Contains(buf.String(), "already running") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestQueueStartDiscardsStaleRecord(t *testing.T) {
	home := setHome(t)
	cmd, buf := testCmd(t)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WritePIDFile(paths.PIDPath, 99999999); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	spawner := &fakeSpawner{pid: 6666}
	if err := runQueueStart(cmd, false, spawner); err != nil {
		t.Fatalf("runQueueStart failed: %v", err)
	}
	if spawner.called != 1 {
		t.Error("stale record must not block a new start")
	}
	if !strings.Contains(buf.String(), "stale") {
		t.Errorf("output should mention the stale record: %s", buf.String())
	}
}

func TestQueueStopWhenNotRunning(t *testing.T) {
	setHome(t)
	cmd, buf := testCmd(t)

	if err := runQueueStop(cmd); err != nil {
		t.Fatalf("runQueueStop failed: %v", err)
	}
	if !strings.Contains(buf.String(), "not running") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestQueueStopRemovesStalePIDFile(t *testing.T) {
	home := setHome(t)
	cmd, _ := testCmd(t)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WritePIDFile(paths.PIDPath, 99999999); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	if err := runQueueStop(cmd); err != nil {
		t.Fatalf("runQueueStop failed: %v", err)
	}
	if _, err := os.Stat(paths.PIDPath); !os.IsNotExist(err) {
		t.Error("stale PID file should be removed")
	}
}

func TestEnqueueWithoutWorkerReturnsQueueUnavailable(t *testing.T) {
	setHome(t)

	rt, err := buildRuntime()
	if err != nil {
		t.Fatalf("buildRuntime failed: %v", err)
	}
	defer rt.close()

	_, err = rt.queue.Enqueue(t.Context(), protocol.PriorityUser, []string{"status"}, "")
	var qerr *protocol.QueueUnavailableError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueueUnavailableError, got %v", err)
	}
}

func TestQueueStatusYAMLOutput(t *testing.T) {
	setHome(t)

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"queue", "status", "--yaml"})

	if err := root.Execute(); err != nil {
		t.Fatalf("queue status --yaml failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"state: stopped", "queued: 0", "daemon: stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestQueueStatusTextOutput(t *testing.T) {
	setHome(t)

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"queue", "status"})

	if err := root.Execute(); err != nil {
		t.Fatalf("queue status failed: %v", err)
	}
	if !strings.Contains(buf.String(), "stopped") {
		t.Errorf("output = %s", buf.String())
	}
}
