package main

import (
	"fmt"
	"strings"

	"gitgate/pkg/eventlog"
	"gitgate/pkg/protocol"
)

// EventsTableModel holds the recent-events table state.
type EventsTableModel struct {
	events []eventlog.Event
}

// NewEventsTableModel creates a new events table model.
func NewEventsTableModel(events []eventlog.Event) EventsTableModel {
	return EventsTableModel{events: events}
}

// View renders the recent events table.
func (e EventsTableModel) View(theme Theme, styles Styles) string {
	if len(e.events) == 0 {
		return styles.Muted.Render("No events recorded yet")
	}

	return e.renderEventsTable(theme, styles)
}

// renderEventsTable renders the full events table with headers and rows.
func (e EventsTableModel) renderEventsTable(theme Theme, styles Styles) string {
	var sb strings.Builder

	headers := []string{"Time", "Event", "Scope", "Duration", "Operation"}
	headerWidths := []int{10, 17, 9, 9, 34}

	headerParts := make([]string, 0, len(headers))
	for i, header := range headers {
		style := styles.Col.
			Width(headerWidths[i]).
			Bold(true).
			Foreground(theme.Primary)
		headerParts = append(headerParts, style.Render(header))
	}
	sb.WriteString(strings.Join(headerParts, " "))
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", 82))
	sb.WriteString("\n")

	for _, ev := range e.events {
		sb.WriteString(e.renderEventRow(ev, headerWidths, styles))
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderEventRow renders a single event row in the table.
func (e EventsTableModel) renderEventRow(ev eventlog.Event, widths []int, styles Styles) string {
	ts := ev.CreatedAt.Format("15:04:05")

	duration := "-"
	if ev.DurationMs > 0 {
		duration = fmt.Sprintf("%dms", ev.DurationMs)
	}

	cells := []string{
		styles.Col.Width(widths[0]).Render(ts),
		styles.Col.Width(widths[1]).Render(e.renderEventBadge(ev.Type, styles)),
		styles.Col.Width(widths[2]).Render(string(ev.Scope)),
		styles.Col.Width(widths[3]).Render(duration),
		styles.Col.Width(widths[4]).Render(truncate(ev.Operation, widths[4])),
	}

	return strings.Join(cells, " ")
}

// renderEventBadge colors the event type by severity: acquire is the
// healthy path, wait and stale are noteworthy, timeout and degraded
// locking are failures.
func (e EventsTableModel) renderEventBadge(typ protocol.EventType, styles Styles) string {
	switch typ {
	case protocol.EventAcquire:
		return styles.Good.Render(string(typ))
	case protocol.EventWait, protocol.EventStale:
		return styles.Warn.Render(string(typ))
	case protocol.EventTimeout, protocol.EventLockUnavailable:
		return styles.Bad.Render(string(typ))
	default:
		return string(typ)
	}
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
