package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Set up shell completions for fenrir",
	Long: `Set up shell tab-completions for fenrir commands and flags.

Supported shells: bash, zsh, fish, powershell

Quick install (adds completions to your shell profile):

  fenrir completion bash --install
  fenrir completion zsh --install
  fenrir completion fish --install

Or print the completion script to stdout (for manual setup):

  fenrir completion bash
  fenrir completion zsh
  fenrir completion fish
  fenrir completion powershell`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE:      runCompletion,
}

// shellCompletion describes how to generate and where to install the
// completion script of one shell. An empty install path means the shell
// has no automatic install.
type shellCompletion struct {
	session string
	gen     func(w io.Writer) error
	install func(home string) string
	notes   func(target string) []string
}

var shells = map[string]shellCompletion{
	"bash": {
		session: `eval "$(fenrir completion bash)"`,
		gen:     func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) },
		install: func(home string) string {
			return filepath.Join(home, ".local", "share", "bash-completion", "completions", "fenrir")
		},
		notes: func(target string) []string {
			return []string{"Restart your shell or run: source " + target}
		},
	},
	"zsh": {
		session: `eval "$(fenrir completion zsh)"`,
		gen:     func(w io.Writer) error { return rootCmd.GenZshCompletion(w) },
		install: func(home string) string {
			return filepath.Join(home, ".local", "share", "zsh", "site-functions", "_fenrir")
		},
		notes: func(target string) []string {
			return []string{
				"Ensure this directory is in your fpath. Add to ~/.zshrc if needed:",
				fmt.Sprintf("  fpath=(%s $fpath)", filepath.Dir(target)),
				"  autoload -Uz compinit && compinit",
			}
		},
	},
	"fish": {
		session: "fenrir completion fish | source",
		gen:     func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		install: func(home string) string {
			return filepath.Join(home, ".config", "fish", "completions", "fenrir.fish")
		},
		notes: func(string) []string {
			return []string{"Completions will be available in new fish sessions automatically."}
		},
	},
	"powershell": {
		session: "fenrir completion powershell | Out-String | Invoke-Expression",
		gen:     func(w io.Writer) error { return rootCmd.GenPowerShellCompletionWithDesc(w) },
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your shell profile")

	// Remove Cobra's default completion command and add ours.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	sc, ok := shells[args[0]]
	if !ok {
		return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", args[0])
	}

	if completionInstall {
		return installCompletion(cmd.OutOrStdout(), args[0], sc)
	}

	// Hints go to stderr so eval "$(fenrir completion bash)" sees only the
	// script.
	hints := []string{
		"# To load completions in your current session:",
		"#   " + sc.session,
		"#",
	}
	if sc.install != nil {
		hints = append(hints, "# To install permanently:", "#   fenrir completion "+args[0]+" --install", "#")
	} else {
		hints = append(hints, "# Add the above command to your profile to install it permanently.", "#")
	}
	w := cmd.ErrOrStderr()
	for _, line := range hints {
		_, _ = fmt.Fprintln(w, line)
	}
	return sc.gen(cmd.OutOrStdout())
}

func installCompletion(out io.Writer, shell string, sc shellCompletion) error {
	if sc.install == nil {
		return fmt.Errorf("automatic install is not supported for %s; run 'fenrir completion %s' and add the output to your profile", shell, shell)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("detecting home directory: %w", err)
	}
	target := sc.install(home)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating completion directory: %w", err)
	}
	if err := writeCompletionFile(target, sc.gen); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s completions installed to %s\n", shell, target)
	for _, line := range sc.notes(target) {
		fmt.Fprintln(out, line)
	}
	return nil
}

// writeCompletionFile writes the script produced by gen to target and
// propagates close errors.
func writeCompletionFile(target string, gen func(io.Writer) error) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating completion file %s: %w", target, err)
	}

	writeErr := gen(f)
	closeErr := f.Close()

	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return nil
}
