package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/fenrir/internal/core"
)

// Workspace prepares directories for fenrir. It needs no configuration, so
// it is usable before any .fenrir.yaml exists.
var Workspace = core.NewWorkspaceInitializer()

var (
	initOracle   string
	initWordlist string
	initWebhook  string
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a fenrir workspace",
	Long: `Write a commented .fenrir.yaml with the default settings, create the
tool and report directories, and add a .gitignore for the generated output.

Safe to run on existing workspaces: files and directories that already
exist are skipped and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		basePath := "."
		if len(args) > 0 {
			basePath = args[0]
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		result, err := Workspace.Init(core.InitConfig{
			BasePath:      absPath,
			OracleCommand: initOracle,
			Wordlist:      initWordlist,
			WebhookURL:    initWebhook,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printPaths := func(title string, paths []string) {
			if len(paths) == 0 {
				return
			}
			fmt.Fprintln(out, title)
			for _, p := range paths {
				rel, err := filepath.Rel(absPath, p)
				if err != nil {
					rel = p
				}
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}
		printPaths("Created:", result.Created)
		printPaths("Skipped (already exist):", result.Skipped)

		fmt.Fprintf(out, "\nWorkspace initialized at %s\n", absPath)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOracle, "oracle", "", "Reasoning engine CLI (default gemini)")
	initCmd.Flags().StringVar(&initWordlist, "wordlist", "", "Default gobuster wordlist")
	initCmd.Flags().StringVar(&initWebhook, "webhook", "", "Slack webhook URL for alerts")
	rootCmd.AddCommand(initCmd)
}
