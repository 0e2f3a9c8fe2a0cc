package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// DispatchStatus is the result class of one dispatch.
type DispatchStatus string

const (
	StatusSucceeded DispatchStatus = "succeeded"
	StatusFailed    DispatchStatus = "failed"
	StatusTimedOut  DispatchStatus = "timed_out"
	// StatusAborted means the operator declined a dispatch-time question.
	StatusAborted DispatchStatus = "aborted"
	// StatusNoop means the task type has no handler.
	StatusNoop DispatchStatus = "noop"
)

// DispatchOutcome describes what happened to a confirmed task.
type DispatchOutcome struct {
	Status     DispatchStatus
	Command    string
	ExitCode   int
	OutputPath string
	Message    string
	// Err is a *TimeoutError when Status is StatusTimedOut.
	Err error
}

// Dispatcher turns confirmed tasks into side effects.
type Dispatcher interface {
	Dispatch(ctx context.Context, runID string, task models.Task) (*DispatchOutcome, error)
}

// Editor is an entry in the default editor menu.
type Editor struct {
	Name   string
	Binary string
}

// DefaultEditors is offered when an open_editor task names no application.
var DefaultEditors = []Editor{
	{Name: "Visual Studio Code", Binary: "code"},
	{Name: "TextEdit", Binary: "xdg-open"},
	{Name: "GoLand", Binary: "goland"},
}

// DispatcherOptions configures NewDispatcher.
type DispatcherOptions struct {
	Runner  ProcessRunner
	Tools   ToolRunner
	Confirm ConfirmationController
	// Out receives status messages; Stdout and Stderr receive command output.
	Out           io.Writer
	Stdout        io.Writer
	Stderr        io.Writer
	KillOnTimeout bool
	Wordlist      string
	Events        EventLogger
	Logger        zerolog.Logger
	// GOOS selects the editor launch convention. Defaults to runtime.GOOS.
	GOOS string
}

type dispatcher struct {
	runner        ProcessRunner
	tools         ToolRunner
	confirm       ConfirmationController
	out           io.Writer
	stdout        io.Writer
	stderr        io.Writer
	killOnTimeout bool
	wordlist      string
	events        EventLogger
	log           zerolog.Logger
	goos          string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOptions) Dispatcher {
	d := &dispatcher{
		runner:        opts.Runner,
		tools:         opts.Tools,
		confirm:       opts.Confirm,
		out:           opts.Out,
		stdout:        opts.Stdout,
		stderr:        opts.Stderr,
		killOnTimeout: opts.KillOnTimeout,
		wordlist:      opts.Wordlist,
		events:        eventsOrNop(opts.Events),
		log:           opts.Logger.With().Str("stage", "dispatch").Logger(),
		goos:          opts.GOOS,
	}
	if d.out == nil {
		d.out = io.Discard
	}
	if d.goos == "" {
		d.goos = runtime.GOOS
	}
	return d
}

func (d *dispatcher) Dispatch(ctx context.Context, runID string, task models.Task) (*DispatchOutcome, error) {
	if !task.IsConfirmed {
		err := &ValidationError{TaskType: string(task.Type), Reason: "task has not been confirmed by the operator"}
		d.emit(runID, task, "dispatch.refused", map[string]any{"error": err.Error()})
		return nil, err
	}

	var (
		outcome *DispatchOutcome
		err     error
	)
	switch task.Type {
	case models.TaskExecuteCommand:
		outcome, err = d.execute(ctx, task)
	case models.TaskOpenEditor:
		outcome, err = d.openEditor(ctx, task)
	case models.TaskGobuster, models.TaskNmap, models.TaskSqlmap, models.TaskGenerateReport:
		outcome, err = d.runTool(ctx, task)
	default:
		outcome = &DispatchOutcome{Status: StatusNoop, Message: "no action taken: " + task.Explanation}
	}

	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			d.emit(runID, task, "dispatch.skipped", map[string]any{"field": ve.Field, "error": err.Error()})
		} else {
			d.emit(runID, task, "dispatch.error", map[string]any{"error": err.Error()})
		}
		return nil, err
	}
	d.emit(runID, task, "dispatch."+string(outcome.Status), map[string]any{
		"command":   outcome.Command,
		"exit_code": outcome.ExitCode,
	})
	return outcome, nil
}

func (d *dispatcher) execute(ctx context.Context, task models.Task) (*DispatchOutcome, error) {
	command, ok := task.Command()
	if !ok {
		return nil, &ValidationError{TaskType: string(task.Type), Field: "command_to_run", Reason: "nothing to execute"}
	}
	return d.runShell(ctx, command)
}

// runShell runs command through the platform shell under the deadline of
// its time segment.
func (d *dispatcher) runShell(ctx context.Context, command string) (*DispatchOutcome, error) {
	segment := ClassifyCommand(command)
	limit := segment.MaxTimeout()
	d.log.Debug().Str("command", command).Str("segment", string(segment)).Dur("timeout", limit).Msg("running command")

	res, err := d.runner.Run(ctx, ProcessRequest{
		Shell:         true,
		Command:       command,
		Timeout:       limit,
		KeepOnTimeout: !d.killOnTimeout,
		Stdout:        d.stdout,
		Stderr:        d.stderr,
	})
	if err != nil {
		return nil, &ProcessError{Stage: "dispatch", Command: command, ExitCode: -1, Err: err}
	}

	switch {
	case res.TimedOut:
		msg := fmt.Sprintf("command exceeded the %s limit for %s commands", limit, segment)
		if !d.killOnTimeout {
			msg += " and may still be running"
		}
		return &DispatchOutcome{
			Status:  StatusTimedOut,
			Command: command,
			Message: msg,
			Err:     &TimeoutError{Stage: "dispatch", Limit: limit},
		}, nil
	case res.ExitCode != 0:
		return &DispatchOutcome{
			Status:   StatusFailed,
			Command:  command,
			ExitCode: res.ExitCode,
			Message:  fmt.Sprintf("command exited with status %d", res.ExitCode),
		}, nil
	default:
		return &DispatchOutcome{Status: StatusSucceeded, Command: command, Message: "command completed"}, nil
	}
}

func (d *dispatcher) openEditor(ctx context.Context, task models.Task) (*DispatchOutcome, error) {
	path, ok := task.Target()
	if !ok {
		return nil, &ValidationError{TaskType: string(task.Type), Field: "target_path", Reason: "no file to open"}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		resp, err := d.confirm.Confirm(ctx, fmt.Sprintf("%s does not exist. Create it? [y/n]: ", path))
		if err != nil {
			return nil, fmt.Errorf("asking to create %s: %w", path, err)
		}
		if resp != ResponseAffirm {
			return &DispatchOutcome{Status: StatusAborted, Message: "file not created"}, nil
		}
		if err := createEmptyFile(path); err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		fmt.Fprintf(d.out, "Created %s\n", path)
	}

	app, ok := task.App()
	if !ok {
		editor, chosen, err := d.chooseEditor(ctx)
		if err != nil {
			return nil, err
		}
		if !chosen {
			return &DispatchOutcome{Status: StatusAborted, Message: "no editor selected"}, nil
		}
		app = editor.Name
	}

	return d.runShell(ctx, EditorCommand(d.goos, app, path))
}

func (d *dispatcher) chooseEditor(ctx context.Context) (Editor, bool, error) {
	fmt.Fprintln(d.out, "No application given. Open with:")
	for i, e := range DefaultEditors {
		fmt.Fprintf(d.out, "  %d) %s\n", i+1, e.Name)
	}
	fmt.Fprintf(d.out, "  %d) cancel\n", len(DefaultEditors)+1)

	choice, err := d.confirm.Ask(ctx, "Editor number: ")
	if err != nil {
		return Editor{}, false, fmt.Errorf("choosing editor: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || n < 1 || n > len(DefaultEditors) {
		return Editor{}, false, nil
	}
	return DefaultEditors[n-1], true, nil
}

// EditorCommand builds the shell command that opens path with app. Every
// word is quoted for the shell of goos, so app and path reach the editor
// verbatim.
func EditorCommand(goos, app, path string) string {
	quote := shellescape.Quote
	if goos == "windows" {
		quote = cmdQuote
	}
	if goos == "darwin" {
		return "open -a " + quote(app) + " " + quote(path)
	}
	binary := strings.ToLower(strings.ReplaceAll(app, " ", "-"))
	for _, e := range DefaultEditors {
		if strings.EqualFold(e.Name, app) {
			binary = e.Binary
		}
	}
	return quote(binary) + " " + quote(path)
}

// cmdQuote wraps s in double quotes for cmd.exe, doubling embedded quotes.
func cmdQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (d *dispatcher) runTool(ctx context.Context, task models.Task) (*DispatchOutcome, error) {
	name := string(task.Type)
	target, ok := task.Target()
	if !ok {
		return nil, &ValidationError{TaskType: name, Field: "target_path", Reason: "a scan target or URL is required"}
	}
	if d.tools == nil || !d.tools.HasTool(name) {
		return &DispatchOutcome{Status: StatusNoop, Message: fmt.Sprintf("no collaborator registered for %s", name)}, nil
	}

	args := ToolArgs{Target: target, Flags: toolFlags(name, task)}
	if task.Type == models.TaskGobuster {
		args.Wordlist = d.wordlist
	}
	res, err := d.tools.RunTool(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	outcome := &DispatchOutcome{Status: StatusSucceeded, Command: name, ExitCode: res.ExitCode, OutputPath: res.OutputPath}
	switch {
	case res.TimedOut:
		outcome.Status = StatusTimedOut
		outcome.Message = fmt.Sprintf("%s exceeded its time limit", name)
		outcome.Err = &TimeoutError{Stage: "dispatch", Limit: models.SegmentLong.MaxTimeout()}
	case res.ExitCode != 0:
		outcome.Status = StatusFailed
		outcome.Message = fmt.Sprintf("%s exited with status %d", name, res.ExitCode)
	default:
		outcome.Message = fmt.Sprintf("%s output saved to %s", name, res.OutputPath)
	}
	return outcome, nil
}

// toolFlags passes the task's command through as raw flags, dropping a
// leading tool name and the target itself.
func toolFlags(name string, task models.Task) []string {
	command, ok := task.Command()
	if !ok {
		return nil
	}
	fields := strings.Fields(command)
	if len(fields) > 0 && filepath.Base(fields[0]) == name {
		fields = fields[1:]
	}
	target, _ := task.Target()
	var flags []string
	for _, f := range fields {
		if f != target {
			flags = append(flags, f)
		}
	}
	return flags
}

func createEmptyFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (d *dispatcher) emit(runID string, task models.Task, event string, data map[string]any) {
	data["run_id"] = runID
	data["task_type"] = string(task.Type)
	_ = d.events.LogEvent(event, data)
}
