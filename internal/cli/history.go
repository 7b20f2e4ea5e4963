package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musharrafhamraz/afterburner/internal/analytics"
	"github.com/musharrafhamraz/afterburner/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the event log of past runs",
	Long: `Read the event log written when event_log is configured (a SQLite path or a
postgres:// DSN). The pipeline itself never reads it back.`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the events and check results of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEventLog(func(d *db.DB) error {
			events, err := d.PipelineHistory(args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No events for run %s.\n", args[0])
				return nil
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-16s %-16s %-8s %s\n", "EVENT", "STAGE", "ATTEMPT", "DETAIL")
			for _, e := range events {
				fmt.Fprintf(w, "%-16s %-16s %-8d %s\n", e.Event, e.Stage, e.Attempt, e.Detail)
			}

			runs, err := d.CheckRuns(args[0])
			if err != nil {
				return err
			}
			if len(runs) > 0 {
				fmt.Fprintf(w, "\n%-16s %-12s %-8s %s\n", "CHECK", "RESULT", "ATTEMPT", "SUMMARY")
				for _, r := range runs {
					fmt.Fprintf(w, "%-16s %-12s %-8d %s\n", r.CheckName, passFail(r.Passed), r.Attempt, r.Summary)
				}
			}
			return nil
		})
	},
}

var historyStagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Average and percentile durations per stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		return withEventLog(func(d *db.DB) error {
			results, err := analytics.QueryStageDurations(d, since)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-16s %-6s %-8s %-8s %s\n", "STAGE", "COUNT", "AVG(s)", "P50(s)", "P95(s)")
			for _, r := range results {
				fmt.Fprintf(w, "%-16s %-6d %-8.1f %-8.1f %.1f\n", r.Stage, r.Count, r.Avg, r.P50, r.P95)
			}
			return nil
		})
	},
}

var historyChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Pass rates per security and test check",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		return withEventLog(func(d *db.DB) error {
			results, err := analytics.QueryCheckPassRates(d, since)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-16s %-12s %-6s %-9s %s\n", "STAGE", "CHECK", "RUNS", "PASSED%", "FIRST-PASS%")
			for _, r := range results {
				fmt.Fprintf(w, "%-16s %-12s %-6d %-9.1f %.1f\n", r.Stage, r.CheckName, r.Runs, r.Passed, r.FirstPass)
			}
			return nil
		})
	},
}

var historyGatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Gate decisions and run outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		return withEventLog(func(d *db.DB) error {
			decisions, err := analytics.QueryGateDecisions(d, since)
			if err != nil {
				return err
			}
			outcomes, err := analytics.QueryRunOutcomes(d, since)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-16s %-22s %s\n", "GATE", "LABEL", "COUNT")
			for _, g := range decisions {
				fmt.Fprintf(w, "%-16s %-22s %d\n", g.Gate, g.Label, g.Count)
			}
			parts := make([]string, 0, len(outcomes))
			for _, o := range outcomes {
				parts = append(parts, fmt.Sprintf("%s=%d", o.Outcome, o.Count))
			}
			fmt.Fprintf(w, "\nRuns: %s\n", strings.Join(parts, ", "))
			return nil
		})
	},
}

// withEventLog opens the configured event log for the duration of fn.
func withEventLog(fn func(d *db.DB) error) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	if cfg.EventLog == "" {
		return fmt.Errorf("event_log is not configured")
	}
	d, err := db.Open(cfg.EventLog)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Migrate(); err != nil {
		return err
	}
	return fn(d)
}

func passFail(ok bool) string {
	if ok {
		return "PASSED"
	}
	return "FAILED"
}

func init() {
	for _, c := range []*cobra.Command{historyStagesCmd, historyChecksCmd, historyGatesCmd} {
		c.Flags().String("since", "", "Only include events at or after this timestamp (YYYY-MM-DD)")
	}
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStagesCmd)
	historyCmd.AddCommand(historyChecksCmd)
	historyCmd.AddCommand(historyGatesCmd)
}
