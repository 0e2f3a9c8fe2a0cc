package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Check the external programs fenrir runs",
	Long: `Run the version command of the reasoning engine CLI and of each
scanning tool, and report which are installed.

Exits with an error when any of them is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if Versions == nil {
			return fmt.Errorf("version checker not initialized")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tVERSION\tSTATUS")
		missing := 0
		for _, st := range Versions.Inventory(cmd.Context(), ToolNames) {
			if st.Err != nil {
				missing++
				fmt.Fprintf(w, "%s\t-\t%v\n", st.Name, st.Err)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\tok\n", st.Name, st.Version)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if missing > 0 {
			return fmt.Errorf("%d of %d tools unavailable", missing, len(ToolNames))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
