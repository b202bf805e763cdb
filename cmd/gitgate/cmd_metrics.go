package main

import (
	"fmt"
	"time"

	"gitgate/pkg/lockmetrics"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newMetricsCmd creates the "gitgate metrics" command group.
func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Lock timing metrics and contention analysis",
	}

	cmd.AddCommand(
		newMetricsInitCmd(),
		newMetricsAnalyzeCmd(),
		newMetricsReportCmd(),
		newMetricsRecentCmd(),
		newMetricsHotspotsCmd(),
		newMetricsCleanupCmd(),
	)
	return cmd
}

func newMetricsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the metrics store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			fmt.Fprintln(cmd.OutOrStdout(), "metrics store ready")
			return nil
		},
	}
}

func newMetricsAnalyzeCmd() *cobra.Command {
	var windowHours int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Latency percentiles and event distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.metrics.Analyze(cmd.Context(), windowHours)
			if err != nil {
				return err
			}
			printAnalyzeReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 24, "analysis window in hours")
	return cmd
}

func printAnalyzeReport(cmd *cobra.Command, report *lockmetrics.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "window:  last %dh, %d acquisitions\n", report.WindowHours, report.SampleCount)
	if report.SampleCount > 0 {
		fmt.Fprintf(out, "latency: p50 %dms  p95 %dms  p99 %dms  avg %.1fms  max %dms\n",
			report.P50, report.P95, report.P99, report.Avg, report.Max)
	}
	for typ, n := range report.EventCounts {
		fmt.Fprintf(out, "events:  %-16s %d\n", typ, n)
	}
	for scope, n := range report.ScopeCounts {
		fmt.Fprintf(out, "scope:   %-16s %d\n", scope, n)
	}
	for _, op := range report.TopOps {
		fmt.Fprintf(out, "top:     %-40s %d\n", op.Operation, op.Count)
	}
}

// reportDoc is the YAML shape of `metrics report`.
type reportDoc struct {
	GeneratedAt string                     `yaml:"generated_at"`
	Analysis    *lockmetrics.Report        `yaml:"analysis"`
	Hotspots    *lockmetrics.HotspotReport `yaml:"hotspots"`
}

func newMetricsReportCmd() *cobra.Command {
	var windowHours int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Combined YAML report (analysis + hotspots)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			analysis, err := rt.metrics.Analyze(cmd.Context(), windowHours)
			if err != nil {
				return err
			}
			hotspots, err := rt.metrics.Hotspots(cmd.Context(), windowHours)
			if err != nil {
				return err
			}

			doc := reportDoc{
				GeneratedAt: time.Now().UTC().Format(time.RFC3339),
				Analysis:    analysis,
				Hotspots:    hotspots,
			}
			data, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 24, "report window in hours")
	return cmd
}

func newMetricsRecentCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent metric events",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			events, err := rt.metrics.Recent(cmd.Context(), count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range events {
				ts := time.UnixMilli(e.TimestampMs).UTC().Format("2006-01-02 15:04:05.000")
				fmt.Fprintf(out, "%s  %-16s %-8s %6dms  %s\n", ts, e.Type, e.Scope, e.DurationMs, e.Operation)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 20, "number of events to show")
	return cmd
}

func newMetricsHotspotsCmd() *cobra.Command {
	var windowHours int

	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "Slow acquisitions and contended lock paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.metrics.Hotspots(cmd.Context(), windowHours)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.SlowOperations) == 0 && len(report.ContendedLocks) == 0 {
				fmt.Fprintf(out, "no hotspots in the last %dh\n", report.WindowHours)
				return nil
			}
			for _, s := range report.SlowOperations {
				fmt.Fprintf(out, "slow:      %6dms  %-40s %s\n", s.DurationMs, s.Operation, s.LockPath)
			}
			for _, l := range report.ContendedLocks {
				fmt.Fprintf(out, "contended: %4d waits  %s\n", l.WaitCount, l.LockPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 1, "hotspot window in hours")
	return cmd
}

func newMetricsCleanupCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete metric and event rows past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			days := retentionDays
			if days == 0 {
				days = rt.cfg.Retention()
			}
			removed, err := rt.metrics.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d rows older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention", 0, "retention window in days (default from config)")
	return cmd
}
