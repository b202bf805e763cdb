package main

import (
	"fmt"

	"gitgate/pkg/predictor"
	"gitgate/pkg/protocol"

	"github.com/spf13/cobra"
)

// newPredictCmd creates the "gitgate predict" command group.
func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Operation sequence prediction",
		Long:  "Learns operation-to-operation transition frequencies from the\nevent log and advises on likely upcoming operations and their scope.",
	}

	cmd.AddCommand(
		newPredictInitCmd(),
		newPredictLearnCmd(),
		newPredictQueryCmd(),
		newPredictPatternsCmd(),
		newPredictAccuracyCmd(),
		newPredictWorkflowsCmd(),
		newPredictResetCmd(),
	)
	return cmd
}

// buildPredictor wires a Predictor over the state DB with the
// configured threshold and lookahead.
func buildPredictor() (*predictor.Predictor, *runtime, error) {
	rt, err := buildRuntime()
	if err != nil {
		return nil, nil, err
	}
	p := predictor.New(predictor.Config{
		DB:         rt.db,
		Confidence: rt.cfg.ConfidenceThreshold,
		Lookahead:  rt.cfg.Lookahead,
	})
	return p, rt, nil
}

func newPredictInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the pattern store",
		RunE: func(cmd *cobra.Command, args []string) error {
			// openDB applies the schema; init just materializes it.
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			fmt.Fprintln(cmd.OutOrStdout(), "pattern store ready")
			return nil
		},
	}
}

func newPredictLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Learn transitions from recent operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			learned, pruned, err := p.Learn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "learned %d transitions, pruned %d rare patterns\n", learned, pruned)
			return nil
		},
	}
}

func newPredictQueryCmd() *cobra.Command {
	var preacquire bool

	cmd := &cobra.Command{
		Use:   "predict <operation>",
		Short: "Predict the operations likely to follow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			var preds []protocol.Prediction
			if preacquire {
				preds, err = p.Preacquire(cmd.Context(), args[0])
			} else {
				preds, err = p.Predict(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(preds) == 0 {
				fmt.Fprintln(out, "no confident prediction")
				return nil
			}
			for _, pr := range preds {
				fmt.Fprintf(out, "%-12s %.0f%%  %s scope\n", pr.Operation, pr.Confidence*100, pr.Scope)
			}
			if preacquire {
				fmt.Fprintln(out, "(advisory only: no lock is warmed up)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&preacquire, "preacquire", false, "log predicted operations with their lock scope (advisory)")
	return cmd
}

func newPredictPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Show the learned pattern store",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := p.Patterns(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no patterns learned yet")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%-12s -> %-12s %d\n", e.FromOperation, e.ToOperation, e.Count)
			}
			return nil
		},
	}
}

func newPredictAccuracyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accuracy",
		Short: "Evaluate prediction accuracy over the trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := p.Accuracy(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "window:    %d operations\n", report.Window)
			fmt.Fprintf(out, "evaluated: %d transitions\n", report.Evaluated)
			fmt.Fprintf(out, "accuracy:  %.1f%% (%d/%d)\n", report.Percent, report.Hits, report.Evaluated)
			if report.Degraded {
				fmt.Fprintln(out, "WARNING: accuracy below 70%, predictions degraded")
			}
			return nil
		},
	}
}

func newPredictWorkflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "Show recurring operation chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			flows, err := p.Workflows(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(flows) == 0 {
				fmt.Fprintln(out, "no workflows detected yet")
				return nil
			}
			for _, f := range flows {
				fmt.Fprintf(out, "%s  (seen %d times)\n", joinSteps(f.Steps), f.Support)
			}
			return nil
		},
	}
}

func joinSteps(steps []string) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += " -> "
		}
		out += s
	}
	return out
}

func newPredictResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the pattern store",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, rt, err := buildPredictor()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := p.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pattern store cleared")
			return nil
		},
	}
}
