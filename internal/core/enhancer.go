package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// Placeholders proposed by the verification probes.
const (
	PlaceholderCommand = "echo 'Command to be determined'"
	PlaceholderPath    = "./file.txt"
)

// EnhanceOutcome is how an enhancement loop ended.
type EnhanceOutcome string

const (
	OutcomeConfirmed EnhanceOutcome = "confirmed"
	OutcomeRejected  EnhanceOutcome = "rejected"
	// OutcomeExhausted means the iteration budget ran out without an answer.
	OutcomeExhausted EnhanceOutcome = "exhausted"
	// OutcomeAbandoned means operator input ended mid-loop.
	OutcomeAbandoned EnhanceOutcome = "abandoned"
)

// EnhanceResult carries the task as it stood when the loop ended.
type EnhanceResult struct {
	Task       models.Task
	Outcome    EnhanceOutcome
	Iterations int
}

// Probe inspects a private copy of a task and returns an enhanced copy,
// or false when its precondition does not hold.
type Probe func(ctx context.Context, t models.Task) (models.Task, bool)

// TaskEnhancer fills gaps in a task and asks the operator to confirm it.
type TaskEnhancer interface {
	Enhance(ctx context.Context, runID string, task models.Task) (*EnhanceResult, error)
}

// EnhancerOptions configures NewTaskEnhancer.
type EnhancerOptions struct {
	Config  models.EnhancerConfig
	Confirm ConfirmationController
	Out     io.Writer
	Events  EventLogger
	Logger  zerolog.Logger
	// Probes overrides the default command and path probes.
	Probes []Probe
}

type taskEnhancer struct {
	maxIterations int
	probes        []Probe
	confirm       ConfirmationController
	out           io.Writer
	events        EventLogger
	log           zerolog.Logger
}

// NewTaskEnhancer creates a TaskEnhancer.
func NewTaskEnhancer(opts EnhancerOptions) TaskEnhancer {
	probes := opts.Probes
	if probes == nil {
		probes = []Probe{CommandProbe(opts.Config.ProbeDelay), PathProbe(opts.Config.ProbeDelay)}
	}
	maxIter := opts.Config.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &taskEnhancer{
		maxIterations: maxIter,
		probes:        probes,
		confirm:       opts.Confirm,
		out:           out,
		events:        eventsOrNop(opts.Events),
		log:           opts.Logger.With().Str("stage", "enhancer").Logger(),
	}
}

func (e *taskEnhancer) Enhance(ctx context.Context, runID string, task models.Task) (*EnhanceResult, error) {
	task = task.Clone()
	task.IsConfirmed = false

	for i := 1; i <= e.maxIterations; i++ {
		_, hasCmd := task.Command()
		_, hasTarget := task.Target()
		if !hasCmd && !hasTarget {
			if enhanced, ok := RunProbes(ctx, task, e.probes); ok {
				task = enhanced
			}
		}

		fmt.Fprintln(e.out, RenderTask(task))
		resp, err := e.confirm.Confirm(ctx, "Run this task? [y/n/edit]: ")
		if err != nil {
			return e.stop(runID, task, i, err)
		}

		switch resp {
		case ResponseAffirm:
			task.IsConfirmed = true
			_ = e.events.LogEvent("task.confirmed", map[string]any{
				"run_id": runID, "task_type": string(task.Type), "iterations": i,
			})
			return &EnhanceResult{Task: task, Outcome: OutcomeConfirmed, Iterations: i}, nil
		case ResponseReject:
			_ = e.events.LogEvent("task.rejected", map[string]any{
				"run_id": runID, "task_type": string(task.Type), "iterations": i,
			})
			return &EnhanceResult{Task: task, Outcome: OutcomeRejected, Iterations: i}, nil
		case ResponseEdit:
			edited, err := e.edit(ctx, task)
			if err != nil {
				return e.stop(runID, task, i, err)
			}
			if edited != nil {
				task = *edited
				_ = e.events.LogEvent("task.enhanced", map[string]any{
					"run_id": runID, "task_type": string(task.Type), "iterations": i,
				})
			}
		default:
			fmt.Fprintln(e.out, "Please answer y, n or edit.")
		}
	}

	e.log.Warn().Str("run_id", runID).Int("iterations", e.maxIterations).Msg("enhancement budget exhausted")
	fmt.Fprintf(e.out, "Warning: no confirmation after %d attempts; task left unconfirmed.\n", e.maxIterations)
	_ = e.events.LogEvent("task.unconfirmed", map[string]any{
		"run_id": runID, "task_type": string(task.Type), "iterations": e.maxIterations,
	})
	return &EnhanceResult{Task: task, Outcome: OutcomeExhausted, Iterations: e.maxIterations}, nil
}

// stop ends the loop on a read error. End of input abandons the task.
func (e *taskEnhancer) stop(runID string, task models.Task, iter int, err error) (*EnhanceResult, error) {
	if errors.Is(err, io.EOF) {
		e.log.Debug().Str("run_id", runID).Msg("operator input ended during enhancement")
		return &EnhanceResult{Task: task, Outcome: OutcomeAbandoned, Iterations: iter}, nil
	}
	return nil, fmt.Errorf("enhancing task: %w", err)
}

// edit runs one edit round on a copy. It returns nil when nothing changed.
func (e *taskEnhancer) edit(ctx context.Context, task models.Task) (*models.Task, error) {
	targets := EditTargets()
	fmt.Fprintln(e.out, "Which field do you want to change?")
	for i, t := range targets {
		fmt.Fprintf(e.out, "  %d) %s\n", i+1, t.Label())
	}
	choice, err := e.confirm.Ask(ctx, "Field number: ")
	if err != nil {
		return nil, err
	}
	target, ok := EditTargetByChoice(choice)
	if !ok {
		fmt.Fprintf(e.out, "Invalid choice %q.\n", choice)
		return nil, nil
	}
	input, err := e.confirm.Ask(ctx, target.Prompt())
	if err != nil {
		return nil, err
	}
	edited := task.Clone()
	if err := target.Apply(&edited, input); err != nil {
		fmt.Fprintf(e.out, "Could not change %s: %v\n", target.Label(), err)
		return nil, nil
	}
	return &edited, nil
}

// RunProbes runs every probe concurrently on its own clone and returns the
// first enhancement to arrive. Later results are discarded.
func RunProbes(ctx context.Context, task models.Task, probes []Probe) (models.Task, bool) {
	if len(probes) == 0 {
		return models.Task{}, false
	}
	type probeResult struct {
		task models.Task
		ok   bool
	}
	results := make(chan probeResult, len(probes))
	for _, p := range probes {
		go func(clone models.Task) {
			t, ok := p(ctx, clone)
			results <- probeResult{task: t, ok: ok}
		}(task.Clone())
	}
	for range probes {
		select {
		case r := <-results:
			if r.ok {
				return r.task, true
			}
		case <-ctx.Done():
			return models.Task{}, false
		}
	}
	return models.Task{}, false
}

// CommandProbe proposes a placeholder command for execute_command tasks
// that have none.
func CommandProbe(delay time.Duration) Probe {
	return func(ctx context.Context, t models.Task) (models.Task, bool) {
		if _, ok := t.Command(); ok || t.Type != models.TaskExecuteCommand {
			return models.Task{}, false
		}
		if sleepContext(ctx, delay) != nil {
			return models.Task{}, false
		}
		t.CommandToRun = models.Optional(PlaceholderCommand)
		Classify(&t)
		return t, true
	}
}

// PathProbe proposes a placeholder path for open_editor tasks that have none.
func PathProbe(delay time.Duration) Probe {
	return func(ctx context.Context, t models.Task) (models.Task, bool) {
		if _, ok := t.Target(); ok || t.Type != models.TaskOpenEditor {
			return models.Task{}, false
		}
		if sleepContext(ctx, delay) != nil {
			return models.Task{}, false
		}
		t.TargetPath = models.Optional(PlaceholderPath)
		return t, true
	}
}
