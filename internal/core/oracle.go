package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// Resolution is the outcome of resolving one query.
type Resolution struct {
	Task models.Task
	// Fallback is true when the task was synthesized by a keyword rule.
	Fallback bool
	Rule     string
}

// OracleClient turns a natural-language query into a task.
type OracleClient interface {
	Resolve(ctx context.Context, runID, query string) (*Resolution, error)
}

// OracleOptions configures NewOracleClient.
type OracleOptions struct {
	Config       models.OracleConfig
	BuildCommand string
	Runner       ProcessRunner
	Events       EventLogger
	Logger       zerolog.Logger
}

type oracleClient struct {
	cfg    models.OracleConfig
	rules  []FallbackRule
	runner ProcessRunner
	events EventLogger
	log    zerolog.Logger
}

// NewOracleClient creates an OracleClient that invokes the configured
// reasoning engine and falls back to keyword rules once retries run out.
func NewOracleClient(opts OracleOptions) OracleClient {
	return &oracleClient{
		cfg:    opts.Config,
		rules:  FallbackRules(opts.BuildCommand),
		runner: opts.Runner,
		events: eventsOrNop(opts.Events),
		log:    opts.Logger.With().Str("stage", "oracle").Logger(),
	}
}

func (o *oracleClient) Resolve(ctx context.Context, runID, query string) (*Resolution, error) {
	prompt := BuildOraclePrompt(query)

	var lastErr error
	retries := 0
	for ; ; retries++ {
		task, err := o.invoke(ctx, prompt)
		if err == nil {
			task.RetryCount = retries
			Classify(&task)
			_ = o.events.LogEvent("oracle.resolved", map[string]any{
				"run_id":    runID,
				"task_type": string(task.Type),
				"retries":   retries,
			})
			return &Resolution{Task: task}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("oracle: resolving %q: %w", query, ctxErr)
		}

		lastErr = err
		o.log.Warn().Err(err).Int("retry", retries).Str("run_id", runID).Msg("reasoning engine attempt failed")
		_ = o.events.LogEvent("oracle.attempt_failed", map[string]any{
			"run_id": runID,
			"retry":  retries,
			"kind":   attemptFailureKind(err),
			"error":  err.Error(),
		})

		if retries >= o.cfg.MaxRetries {
			break
		}
		if err := sleepContext(ctx, o.cfg.Backoff); err != nil {
			return nil, fmt.Errorf("oracle: resolving %q: %w", query, err)
		}
	}

	task, rule, ok := MatchFallback(o.rules, query, retries)
	if !ok {
		_ = o.events.LogEvent("oracle.exhausted", map[string]any{
			"run_id":  runID,
			"retries": retries,
		})
		return nil, &FallbackExhaustedError{Query: query, Retries: retries, Last: lastErr}
	}
	o.log.Info().Str("rule", rule).Int("retries", retries).Msg("using fallback rule")
	_ = o.events.LogEvent("oracle.fallback", map[string]any{
		"run_id":    runID,
		"rule":      rule,
		"task_type": string(task.Type),
		"retries":   retries,
	})
	return &Resolution{Task: task, Fallback: true, Rule: rule}, nil
}

// invoke runs one attempt. Failures are a *TimeoutError, *ProcessError or
// *ProtocolError.
func (o *oracleClient) invoke(ctx context.Context, prompt string) (models.Task, error) {
	args := append(append([]string(nil), o.cfg.Args...), prompt)
	res, err := o.runner.Run(ctx, ProcessRequest{
		Command: o.cfg.Command,
		Args:    args,
		Timeout: o.cfg.Timeout,
	})
	if err != nil {
		return models.Task{}, &ProcessError{Stage: "oracle", Command: o.cfg.Command, ExitCode: -1, Err: err}
	}
	if res.TimedOut {
		return models.Task{}, &TimeoutError{Stage: "oracle", Limit: o.cfg.Timeout}
	}
	if res.ExitCode != 0 {
		return models.Task{}, &ProcessError{Stage: "oracle", Command: o.cfg.Command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return ParseTaskCard(res.Stdout)
}

func attemptFailureKind(err error) string {
	var (
		te *TimeoutError
		pe *ProtocolError
	)
	switch {
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &pe):
		return "protocol"
	default:
		return "process"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var promptExamples = []struct {
	query string
	task  models.Task
}{
	{"list the files in the current folder", exampleTask(models.TaskExecuteCommand, "The user wants to list the files in the current folder.", "ls -l", "", "")},
	{"open main.go in goland", exampleTask(models.TaskOpenEditor, "The user wants to open 'main.go' in 'goland'.", "", "main.go", "goland")},
	{"scan the ports on localhost", exampleTask(models.TaskExecuteCommand, "The user wants an nmap service version scan (-sV) of localhost.", "nmap -sV localhost", "", "")},
	{"check the sqlmap version", exampleTask(models.TaskExecuteCommand, "The user wants to check the installed sqlmap version.", "sqlmap --version", "", "")},
	{"how many paddles does a canoe have", exampleTask(models.TaskUnknown, "The user asked a random question that is not a command.", "", "", "")},
}

func exampleTask(tt models.TaskType, explanation, command, file, app string) models.Task {
	return models.Task{
		Type:         tt,
		Explanation:  explanation,
		CommandToRun: models.Optional(command),
		TargetPath:   models.Optional(file),
		Application:  models.Optional(app),
	}
}

// BuildOraclePrompt renders the instruction sent to the reasoning engine:
// the card grammar, worked examples and the literal query.
func BuildOraclePrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are the oracle for a command-line assistant called fenrir.\n")
	b.WriteString("Your ONLY job is to translate the user's request into a TASK CARD.\n")
	b.WriteString("Do not explain. Do not chat. Reply with the card and nothing else.\n")
	fmt.Fprintf(&b, "Use %q for fields that do not apply.\n\n", NotApplicable)

	b.WriteString("Card format:\n")
	b.WriteString("TASK_TYPE: [execute_command | open_editor | gobuster | nmap | sqlmap | generate_report | unknown]\n")
	b.WriteString("EXPLANATION: [what you understood the user wants]\n")
	b.WriteString("COMMAND: [the full shell command, N/A unless execute_command]\n")
	b.WriteString("FILE: [the target file, folder or URL, N/A if none]\n")
	b.WriteString("APP: [the application to open with, N/A unless open_editor]\n")
	b.WriteString("TAGS: [optional comma separated labels]\n\n")

	b.WriteString("--- Examples ---\n")
	for _, ex := range promptExamples {
		fmt.Fprintf(&b, "Query: %q\nCard:\n%s\n", ex.query, FormatCard(ex.task))
	}

	fmt.Fprintf(&b, "THE USER QUERY IS:\n'%s'\n\nREPLY WITH THE TASK CARD ONLY.\n", query)
	return b.String()
}
