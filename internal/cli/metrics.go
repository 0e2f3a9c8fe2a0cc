package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display pipeline metrics",
	Long: `Display metrics derived from the event log.

Metrics include runs, oracle resolutions and fallbacks, attempt failures by
kind, confirmations and dispatch results by status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (no event log configured)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Runs:", metrics.Runs)
		fmt.Fprintf(out, "  %-24s %d\n", "Runs failed:", metrics.RunsFailed)
		fmt.Fprintf(out, "  %-24s %d\n", "Resolved by oracle:", metrics.Resolved)
		fmt.Fprintf(out, "  %-24s %d (%.0f%%)\n", "Resolved by fallback:", metrics.Fallbacks, metrics.FallbackRate())
		fmt.Fprintf(out, "  %-24s %d\n", "Exhausted:", metrics.Exhausted)
		fmt.Fprintf(out, "  %-24s %d\n", "Confirmed:", metrics.Confirmed)
		fmt.Fprintf(out, "  %-24s %d\n", "Rejected:", metrics.Rejected)
		fmt.Fprintf(out, "  %-24s %d\n", "Left unconfirmed:", metrics.Unconfirmed)

		printCounts(out, "Attempt failures", metrics.AttemptFailures)
		printCounts(out, "Fallback rules", metrics.FallbackRules)
		printCounts(out, "Tasks by type", metrics.TasksByType)
		printCounts(out, "Dispatch results", metrics.DispatchByState)

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\n  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	_ = metricsCmd.RegisterFlagCompletionFunc("since", completeSince)
	rootCmd.AddCommand(metricsCmd)
}
