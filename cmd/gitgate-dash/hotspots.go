package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"gitgate/pkg/lockmetrics"
)

// HotspotsModel holds the contention panel state.
type HotspotsModel struct {
	report *lockmetrics.HotspotReport
}

// NewHotspotsModel creates a new hotspots panel model.
func NewHotspotsModel(report *lockmetrics.HotspotReport) HotspotsModel {
	return HotspotsModel{report: report}
}

// View renders the hotspot panel: slow acquisitions first, then the
// most contended lock paths.
func (h HotspotsModel) View(theme Theme, styles Styles) string {
	if h.report == nil || (len(h.report.SlowOperations) == 0 && len(h.report.ContendedLocks) == 0) {
		return styles.Muted.Render(fmt.Sprintf("No hotspots in the last %dh", h.windowHours()))
	}

	var sb strings.Builder
	for _, s := range h.report.SlowOperations {
		line := fmt.Sprintf("%s %6dms  %s", styles.Bad.Render("slow"), s.DurationMs, truncate(s.Operation, 40))
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for _, l := range h.report.ContendedLocks {
		line := fmt.Sprintf("%s %4d waits  %s", styles.Warn.Render("busy"), l.WaitCount, filepath.Base(l.LockPath))
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (h HotspotsModel) windowHours() int {
	if h.report == nil || h.report.WindowHours == 0 {
		return 1
	}
	return h.report.WindowHours
}
