package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/fenrir/internal/integration"
)

// completeSince offers common --since windows.
func completeSince(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"24h\tLast day",
		"7d\tLast week",
		"30d\tLast month",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeConfigFiles limits --config to YAML files.
func completeConfigFiles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeToolCommands suggests the scanning tools as the first word of a
// command to classify. Later words fall back to file completion.
func completeToolCommands(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var names []string
	for _, n := range []string{integration.ToolGobuster, integration.ToolNmap, integration.ToolSqlmap} {
		if strings.HasPrefix(n, toComplete) {
			names = append(names, n+"\tLong")
		}
	}
	return names, cobra.ShellCompDirectiveDefault
}
