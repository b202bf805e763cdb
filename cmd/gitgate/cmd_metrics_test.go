package main

import (
	"context"
	"strings"
	"testing"

	"gitgate/pkg/protocol"
)

// seedMetrics records events through the collector so both the metrics
// table and the event log are populated.
func seedMetrics(t *testing.T, events []protocol.MetricEvent) {
	t.Helper()
	rt, err := buildRuntime()
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	defer rt.close()
	for _, e := range events {
		if err := rt.metrics.Record(context.Background(), e); err != nil {
			t.Fatalf("record metric: %v", err)
		}
	}
}

func TestMetricsInitCreatesStore(t *testing.T) {
	setHome(t)
	out := runRoot(t, "metrics", "init")
	if !strings.Contains(out, "metrics store ready") {
		t.Errorf("output = %q", out)
	}
}

func TestMetricsAnalyzeEmpty(t *testing.T) {
	setHome(t)
	out := runRoot(t, "metrics", "analyze")
	if !strings.Contains(out, "last 24h, 0 acquisitions") {
		t.Errorf("output = %q", out)
	}
}

func TestMetricsAnalyzePercentiles(t *testing.T) {
	setHome(t)
	var events []protocol.MetricEvent
	for _, d := range []int64{10, 20, 30, 40, 50} {
		events = append(events, protocol.MetricEvent{
			Type:       protocol.EventAcquire,
			Scope:      protocol.ScopeWorktree,
			LockPath:   "/tmp/a.lock",
			Operation:  "git status",
			DurationMs: d,
		})
	}
	seedMetrics(t, events)

	out := runRoot(t, "metrics", "analyze")
	if !strings.Contains(out, "5 acquisitions") {
		t.Errorf("expected 5 samples, got %q", out)
	}
	if !strings.Contains(out, "p50 30ms") {
		t.Errorf("expected p50 30ms, got %q", out)
	}
	if !strings.Contains(out, "max 50ms") {
		t.Errorf("expected max 50ms, got %q", out)
	}
}

func TestMetricsHotspotsEmpty(t *testing.T) {
	setHome(t)
	out := runRoot(t, "metrics", "hotspots")
	if !strings.Contains(out, "no hotspots in the last 1h") {
		t.Errorf("output = %q", out)
	}
}

func TestMetricsHotspotsRanksSlowAndContended(t *testing.T) {
	setHome(t)
	seedMetrics(t, []protocol.MetricEvent{
		{Type: protocol.EventAcquire, Scope: protocol.ScopeGlobal, LockPath: "/tmp/g.lock", Operation: "git merge main", DurationMs: 2500},
		{Type: protocol.EventWait, Scope: protocol.ScopeGlobal, LockPath: "/tmp/g.lock", Operation: "git push"},
		{Type: protocol.EventWait, Scope: protocol.ScopeGlobal, LockPath: "/tmp/g.lock", Operation: "git pull"},
	})

	out := runRoot(t, "metrics", "hotspots")
	if !strings.Contains(out, "slow:") || !strings.Contains(out, "git merge main") {
		t.Errorf("expected slow entry, got %q", out)
	}
	if !strings.Contains(out, "contended:") || !strings.Contains(out, "2 waits") {
		t.Errorf("expected contended entry with 2 waits, got %q", out)
	}
}

func TestMetricsRecentShowsNewestFirst(t *testing.T) {
	setHome(t)
	seedMetrics(t, []protocol.MetricEvent{
		{Type: protocol.EventAcquire, Scope: protocol.ScopeWorktree, LockPath: "/tmp/a.lock", Operation: "git add ."},
		{Type: protocol.EventAcquire, Scope: protocol.ScopeWorktree, LockPath: "/tmp/a.lock", Operation: "git commit -m x"},
	})

	out := runRoot(t, "metrics", "recent", "--count", "10")
	addIdx := strings.Index(out, "git add .")
	commitIdx := strings.Index(out, "git commit -m x")
	if addIdx < 0 || commitIdx < 0 {
		t.Fatalf("missing events in output: %q", out)
	}
	if commitIdx > addIdx {
		t.Errorf("expected newest first, got %q", out)
	}
}

func TestMetricsReportIsYAML(t *testing.T) {
	setHome(t)
	out := runRoot(t, "metrics", "report")
	for _, want := range []string{"generated_at:", "analysis:", "hotspots:"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q: %q", want, out)
		}
	}
}

func TestMetricsCleanupKeepsRecentRows(t *testing.T) {
	setHome(t)
	seedMetrics(t, []protocol.MetricEvent{
		{Type: protocol.EventAcquire, Scope: protocol.ScopeWorktree, LockPath: "/tmp/a.lock", Operation: "git status", DurationMs: 5},
	})

	out := runRoot(t, "metrics", "cleanup")
	if !strings.Contains(out, "removed 0 rows") {
		t.Errorf("fresh rows should survive cleanup: %q", out)
	}

	out = runRoot(t, "metrics", "recent")
	if !strings.Contains(out, "git status") {
		t.Errorf("row missing after cleanup: %q", out)
	}
}
