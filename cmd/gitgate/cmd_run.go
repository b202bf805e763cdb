package main

import (
	"errors"
	"fmt"

	"gitgate/pkg/protocol"

	"github.com/spf13/cobra"
)

// newRunCmd creates the "gitgate run" subcommand: the direct tier that
// executes one git command under the correct lock without going
// through the queue. Direct and queued callers contend on the same
// lock files, so they can never race each other.
func newRunCmd() *cobra.Command {
	var worktree string

	cmd := &cobra.Command{
		Use:   "run [flags] -- <git args>",
		Short: "Run one git command under the correct lock",
		Long: "Classifies the command's lock scope, acquires the matching lock\n" +
			"file, runs git, and releases. Example:\n" +
			"  gitgate run --worktree .worktrees/task-1 -- commit -m \"msg\"",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := rt.locks.Run(cmd.Context(), worktree, args)
			if res != nil && res.Output != "" {
				fmt.Fprint(cmd.OutOrStdout(), res.Output)
			}
			if err != nil {
				var opErr *protocol.OperationError
				if errors.As(err, &opErr) {
					// git's own failure: the output above is the diagnostic.
					return fmt.Errorf("exit %d", opErr.ExitCode)
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worktree, "worktree", "", "worktree path the command runs in")
	return cmd
}
