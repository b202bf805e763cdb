package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newDashCmd creates the "gitgate dash" subcommand.
func newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Launch the live coordination dashboard",
		Long:  "Opens the gitgate-dash TUI for monitoring queue state, recent\nlock events, and contention hotspots.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("dash requires a terminal; use `gitgate queue status --yaml` for scripts")
			}

			dashCmd := exec.CommandContext(cmd.Context(), "gitgate-dash")
			dashCmd.Stdin = os.Stdin
			dashCmd.Stdout = os.Stdout
			dashCmd.Stderr = os.Stderr

			if err := dashCmd.Run(); err != nil {
				return fmt.Errorf("run gitgate-dash: %w", err)
			}
			return nil
		},
	}
}
