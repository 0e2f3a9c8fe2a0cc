package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/valter-silva-au/fenrir/internal/core"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var (
	configFile string
	noExec     bool
)

// exitWords end the interactive prompt.
var exitWords = map[string]bool{"exit": true, "quit": true, "sair": true}

var rootCmd = &cobra.Command{
	Use:   "fenrir [query...]",
	Short: "fenrir - natural-language command runner",
	Long: `fenrir turns a natural-language request into a task, asks you to
confirm it, and then runs it.

A reasoning engine resolves each request into a task card. When the engine
keeps failing, keyword fallback rules take over. Nothing runs until you
answer y; answer edit to change the task first.

With a query, fenrir handles that one request and exits. Without one it
starts an interactive prompt; type exit, quit or sair to leave.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if len(args) > 0 {
			return runOnce(ctx, cmd, strings.Join(args, " "))
		}
		return runInteractive(ctx, cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fenrir %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a configuration file (default: .fenrir.yaml in the base path)")
	_ = rootCmd.RegisterFlagCompletionFunc("config", completeConfigFiles)
	rootCmd.PersistentFlags().BoolVar(&noExec, "no-exec", false, "stop after confirmation without running the task")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initServices runs the registered initializer. Without one, the
// package-level services are used as they are.
func initServices(cmd *cobra.Command) (func(), error) {
	if initializer == nil {
		return func() {}, nil
	}
	closeFn, err := initializer(InitOptions{
		ConfigFile: configFile,
		NoExec:     noExec,
		In:         cmd.InOrStdin(),
		Out:        cmd.OutOrStdout(),
		Err:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := closeFn(); err != nil {
			Logger.Warn().Err(err).Msg("releasing services")
		}
	}, nil
}

// runOnce resolves and runs a single query. An unresolvable query is an
// error so the process exits non-zero.
func runOnce(ctx context.Context, cmd *cobra.Command, query string) error {
	_, err := Pipeline.Run(ctx, query)
	if err != nil {
		return describeRunError(query, err)
	}
	return nil
}

// runInteractive reads queries until an exit word or end of input. Failed
// queries are reported and the prompt continues.
func runInteractive(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	in := Input
	if in == nil {
		in = core.NewLineReader(cmd.InOrStdin(), nil)
	}

	if isTerminal(cmd.InOrStdin()) {
		fmt.Fprintf(out, "fenrir %s. Describe what you want to do; type exit to leave.\n", appVersion)
	}

	for {
		fmt.Fprint(out, "fenrir> ")
		line, err := in.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("reading query: %w", err)
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if exitWords[strings.ToLower(query)] {
			return nil
		}

		if _, err := Pipeline.Run(ctx, query); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(out)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", describeRunError(query, err))
		}
	}
}

func describeRunError(query string, err error) error {
	var fe *core.FallbackExhaustedError
	if errors.As(err, &fe) {
		return err
	}
	return fmt.Errorf("running %q: %w", query, err)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
