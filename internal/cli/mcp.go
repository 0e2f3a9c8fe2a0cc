package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	fenrirmcp "github.com/valter-silva-au/fenrir/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the fenrir MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fenrir MCP server on stdio",
	Long: `Start the fenrir MCP server on stdio transport.

The server exposes the side-effect free pipeline stages as MCP tools:
parse_task_card, classify_command, resolve_query, get_metrics, get_alerts.
No tool runs a resolved task.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if Oracle == nil {
			return fmt.Errorf("oracle not initialized")
		}

		srv := fenrirmcp.NewServer(Oracle, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
