package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts fire on queries nothing could resolve, a high share of fallback
resolutions, repeated dispatch timeouts and tasks left unconfirmed.

With --notify the alerts are also posted to the configured Slack webhook
(alerts.webhook_url).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (no event log configured)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
		} else {
			fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				severity := strings.ToUpper(string(alert.Severity))
				fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
				fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
			}
		}

		if !alertsNotify {
			return nil
		}
		if Notifier == nil {
			return fmt.Errorf("no notifier configured (set alerts.webhook_url)")
		}
		if err := Notifier.Notify(alerts); err != nil {
			return fmt.Errorf("sending alerts: %w", err)
		}
		if len(alerts) > 0 {
			fmt.Fprintln(out, "Alerts sent.")
		}
		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post active alerts to the configured webhook")
	rootCmd.AddCommand(alertsCmd)
}
