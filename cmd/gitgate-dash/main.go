// Package main implements the gitgate-dash interactive dashboard: a
// live terminal view of the queue worker state, the lock lifecycle
// event log, and contention hotspots.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// robotMode outputs a JSON snapshot of the dashboard data for scripts
// and non-interactive callers.
func robotMode(ctx context.Context, dbPath string) ([]byte, error) {
	snap, err := FetchSnapshot(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(map[string]any{
		"status":   snap.Status,
		"events":   snap.Events,
		"hotspots": snap.Hotspots,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func main() {
	robot := flag.Bool("robot", false, "print a JSON snapshot and exit")
	flag.Parse()

	dbPath := stateDBPath()

	if *robot {
		data, err := robotMode(context.Background(), dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading gitgate state: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	p := tea.NewProgram(newModel(dbPath), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}
