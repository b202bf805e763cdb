package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitgate/pkg/protocol"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used as the polling fallback when the fsnotify watcher is unavailable.
type tickMsg time.Time

// snapshotMsg carries one refresh of the dashboard data.
// A nil Snapshot with a non-nil error means the state DB is unreachable.
type snapshotMsg struct {
	snap *Snapshot
	err  error
}

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshotCmd returns a tea.Cmd that reads the state database.
func fetchSnapshotCmd(dbPath string) tea.Cmd {
	return func() tea.Msg {
		snap, err := FetchSnapshot(context.Background(), dbPath)
		return snapshotMsg{snap: snap, err: err}
	}
}

// Model is the Bubble Tea model for the gitgate dashboard.
type Model struct {
	dbPath  string
	loaded  bool
	offline bool
	snap    *Snapshot

	spinner spinner.Model

	width  int
	height int
}

// newModel creates a Model reading from the given state database path.
func newModel(dbPath string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(DefaultTheme().Secondary)

	return Model{
		dbPath:  dbPath,
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchSnapshotCmd(m.dbPath),
		watchStateDir(filepath.Dir(m.dbPath)),
		tickCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshotCmd(m.dbPath)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		m.loaded = true
		if msg.err != nil {
			m.offline = true
			break
		}
		m.offline = false
		m.snap = msg.snap

	case fsChangeMsg:
		// Re-arm the watcher after each delivery; runWatcher returns
		// once per debounced burst.
		return m, tea.Batch(
			fetchSnapshotCmd(m.dbPath),
			watchStateDir(filepath.Dir(m.dbPath)),
		)

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.dbPath), tickCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	theme := DefaultTheme()
	styles := DefaultStyles(theme)

	if !m.loaded {
		return m.spinner.View() + " loading gitgate state..."
	}

	statusBar := m.renderStatusBar(theme, styles)
	help := styles.HelpLine.Render("r refresh · q quit")

	if m.offline || m.snap == nil {
		offline := styles.Muted.Render("State database unreachable. Run `gitgate queue start` to initialize it.")
		return lipgloss.JoinVertical(lipgloss.Left, statusBar, "", offline, help)
	}

	events := NewEventsTableModel(m.snap.Events)
	hotspots := NewHotspotsModel(m.snap.Hotspots)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		statusBar,
		styles.Title.Render("Recent Events"),
		events.View(theme, styles),
		styles.Title.Render("Hotspots (last 1h)"),
		hotspots.View(theme, styles),
		help,
	)
}

// renderStatusBar renders the worker state and queue counters.
func (m Model) renderStatusBar(theme Theme, styles Styles) string {
	var workerStatus string
	switch {
	case m.offline || m.snap == nil:
		workerStatus = styles.Bad.Render("state: offline")
	case m.snap.Status.State == protocol.StateRunning:
		workerStatus = styles.Good.Render("worker: running")
	case m.snap.Status.State == protocol.StateStarting || m.snap.Status.State == protocol.StateStopping:
		workerStatus = styles.Warn.Render("worker: " + string(m.snap.Status.State))
	default:
		workerStatus = styles.Bad.Render("worker: stopped")
	}

	queued, completed, failed := 0, 0, 0
	if m.snap != nil && m.snap.Status != nil {
		queued = m.snap.Status.Queued
		completed = m.snap.Status.Completed
		failed = m.snap.Status.Failed
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		workerStatus,
		lipgloss.NewStyle().Render(" | Queued: "),
		lipgloss.NewStyle().Foreground(theme.Primary).Render(fmt.Sprintf("%d", queued)),
		lipgloss.NewStyle().Render(" | Completed: "),
		lipgloss.NewStyle().Foreground(theme.Success).Render(fmt.Sprintf("%d", completed)),
		lipgloss.NewStyle().Render(" | Failed: "),
		lipgloss.NewStyle().Foreground(theme.Error).Render(fmt.Sprintf("%d", failed)),
	)
}
