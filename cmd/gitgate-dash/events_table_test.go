package main

import (
	"strings"
	"testing"
	"time"

	"gitgate/pkg/eventlog"
	"gitgate/pkg/lockmetrics"
	"gitgate/pkg/protocol"
)

func TestEventsTableEmpty(t *testing.T) {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)

	view := NewEventsTableModel(nil).View(theme, styles)
	if !strings.Contains(view, "No events recorded yet") {
		t.Errorf("view = %q", view)
	}
}

func TestEventsTableRendersRows(t *testing.T) {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)
	events := []eventlog.Event{
		{
			Type:       protocol.EventAcquire,
			Scope:      protocol.ScopeGlobal,
			Operation:  "git merge feature",
			DurationMs: 42,
			CreatedAt:  time.Date(2026, 8, 30, 14, 3, 5, 0, time.UTC),
		},
		{
			Type:      protocol.EventTimeout,
			Scope:     protocol.ScopeGlobal,
			Operation: "git rebase main",
			CreatedAt: time.Date(2026, 8, 30, 14, 3, 9, 0, time.UTC),
		},
	}

	view := NewEventsTableModel(events).View(theme, styles)
	for _, want := range []string{"14:03:05", "acquire", "git merge feature", "42ms", "timeout", "git rebase main"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEventsTableTruncatesLongOperations(t *testing.T) {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)
	long := "git commit -m " + strings.Repeat("x", 60)
	events := []eventlog.Event{
		{Type: protocol.EventAcquire, Scope: protocol.ScopeWorktree, Operation: long},
	}

	view := NewEventsTableModel(events).View(theme, styles)
	if strings.Contains(view, long) {
		t.Error("long operation was not truncated")
	}
	if !strings.Contains(view, "…") {
		t.Error("expected ellipsis in truncated operation")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("exactly-10", 10); got != "exactly-10" {
		t.Errorf("truncate(exactly-10) = %q", got)
	}
	if got := truncate("longer-than-limit", 10); got != "longer-th…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestHotspotsPanelEmpty(t *testing.T) {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)

	view := NewHotspotsModel(&lockmetrics.HotspotReport{WindowHours: 1}).View(theme, styles)
	if !strings.Contains(view, "No hotspots in the last 1h") {
		t.Errorf("view = %q", view)
	}
}

func TestHotspotsPanelRanksEntries(t *testing.T) {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)
	report := &lockmetrics.HotspotReport{
		WindowHours: 1,
		SlowOperations: []lockmetrics.SlowOperation{
			{Operation: "git merge main", LockPath: "/tmp/global.lock", DurationMs: 2500},
		},
		ContendedLocks: []lockmetrics.ContendedLock{
			{LockPath: "/tmp/locks/global.lock", WaitCount: 4},
		},
	}

	view := NewHotspotsModel(report).View(theme, styles)
	for _, want := range []string{"slow", "2500ms", "git merge main", "busy", "4 waits", "global.lock"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
