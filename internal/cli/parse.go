package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/fenrir/internal/core"
)

var parseJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a task card read from stdin",
	Long: `Read a reasoning-engine reply from stdin and print the task it
describes, classified by expected run time.

A reply without the TASK_TYPE and EXPLANATION keys is reported as a
protocol error together with the raw text.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading task card: %w", err)
		}

		task, err := core.ParseTaskCard(string(raw))
		if err != nil {
			return err
		}
		core.Classify(&task)

		out := cmd.OutOrStdout()
		if parseJSON {
			data, err := json.MarshalIndent(task, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting task as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintln(out, core.RenderTask(task))
		return nil
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Output the task as JSON")
	rootCmd.AddCommand(parseCmd)
}
