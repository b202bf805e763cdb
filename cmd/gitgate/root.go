package main

import (
	"fmt"

	"gitgate/internal/buildinfo"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root gitgate command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gitgate",
		Short:         "Git operation coordinator for concurrent worktrees",
		Long:          "gitgate serializes and schedules git operations issued by multiple\nactive worktrees against one shared repository.",
		Version:       fmt.Sprintf("gitgate %s", buildinfo.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newQueueCmd(),
		newRunCmd(),
		newPredictCmd(),
		newMetricsCmd(),
		newDashCmd(),
	)

	return cmd
}
