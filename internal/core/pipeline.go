package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PipelineResult records what each stage of one run produced.
type PipelineResult struct {
	RunID      string
	Resolution *Resolution
	Enhance    *EnhanceResult
	Dispatch   *DispatchOutcome
	// DispatchErr holds a dispatch failure that was reported to the operator.
	DispatchErr error
}

// Dispatched reports whether the task reached the dispatcher.
func (r *PipelineResult) Dispatched() bool {
	return r.Dispatch != nil || r.DispatchErr != nil
}

// Pipeline runs one query through resolution, enhancement and dispatch.
type Pipeline interface {
	Run(ctx context.Context, query string) (*PipelineResult, error)
}

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Oracle     OracleClient
	Audit      AuditLog
	Enhancer   TaskEnhancer
	Dispatcher Dispatcher
	Out        io.Writer
	// NoExec stops each run after confirmation.
	NoExec bool
	Events EventLogger
	Logger zerolog.Logger
	NewID  func() string
}

type pipeline struct {
	oracle     OracleClient
	audit      AuditLog
	enhancer   TaskEnhancer
	dispatcher Dispatcher
	out        io.Writer
	noExec     bool
	events     EventLogger
	log        zerolog.Logger
	newID      func() string
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions) Pipeline {
	p := &pipeline{
		oracle:     opts.Oracle,
		audit:      opts.Audit,
		enhancer:   opts.Enhancer,
		dispatcher: opts.Dispatcher,
		out:        opts.Out,
		noExec:     opts.NoExec,
		events:     eventsOrNop(opts.Events),
		log:        opts.Logger,
		newID:      opts.NewID,
	}
	if p.out == nil {
		p.out = io.Discard
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Run resolves query and carries the task through the remaining stages.
// Only a failure to resolve the query is returned as an error; later
// problems are reported to the operator and recorded on the result.
func (p *pipeline) Run(ctx context.Context, query string) (*PipelineResult, error) {
	result := &PipelineResult{RunID: p.newID()}
	log := p.log.With().Str("run_id", result.RunID).Logger()
	_ = p.events.LogEvent("pipeline.started", map[string]any{"run_id": result.RunID, "query": query})

	res, err := p.oracle.Resolve(ctx, result.RunID, query)
	if err != nil {
		_ = p.events.LogEvent("pipeline.failed", map[string]any{"run_id": result.RunID, "error": err.Error()})
		return result, err
	}
	result.Resolution = res
	if res.Fallback {
		fmt.Fprintf(p.out, "Reasoning engine failed after %d retries; using fallback rule %q.\n", res.Task.RetryCount, res.Rule)
	}

	if p.audit != nil {
		if err := p.audit.Record(result.RunID, res.Task); err != nil {
			log.Warn().Err(err).Msg("writing audit record")
		}
	}

	enh, err := p.enhancer.Enhance(ctx, result.RunID, res.Task)
	if err != nil {
		return result, fmt.Errorf("run %s: %w", result.RunID, err)
	}
	result.Enhance = enh

	switch enh.Outcome {
	case OutcomeRejected:
		fmt.Fprintln(p.out, "Task rejected; nothing was run.")
		return result, nil
	case OutcomeAbandoned:
		fmt.Fprintln(p.out, "Input ended before the task was confirmed; nothing was run.")
		return result, nil
	case OutcomeExhausted:
		return result, nil
	}

	if p.noExec {
		fmt.Fprintln(p.out, "Task confirmed; execution disabled.")
		return result, nil
	}

	outcome, err := p.dispatcher.Dispatch(ctx, result.RunID, enh.Task)
	if err != nil {
		result.DispatchErr = err
		var ve *ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintf(p.out, "Skipped: %v\n", err)
		} else {
			fmt.Fprintf(p.out, "Dispatch failed: %v\n", err)
			log.Error().Err(err).Msg("dispatch failed")
		}
		return result, nil
	}
	result.Dispatch = outcome
	fmt.Fprintf(p.out, "[%s] %s\n", outcome.Status, outcome.Message)
	return result, nil
}
