package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/fenrir/internal/core"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <command...>",
	Short: "Show the time segment and timeout of a shell command",
	Long: `Classify a shell command as Quick, Medium or Long and print the
execution timeout fenrir would apply to it.

Scanning and brute-force tools are Long even with --version or --help.`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeToolCommands,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		seg := core.ClassifyCommand(command)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (timeout %s)\n", seg, seg.MaxTimeout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
