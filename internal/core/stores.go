package core

import (
	"context"
	"io"
	"time"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// AuditLog records every task the oracle resolves.
// This interface is defined locally in core to avoid importing observability.
type AuditLog interface {
	Record(runID string, task models.Task) error
}

// ProcessRequest describes one external process invocation.
type ProcessRequest struct {
	// Shell runs Command through the platform shell; otherwise Command is
	// the executable and Args its arguments.
	Shell   bool
	Command string
	Args    []string
	Timeout time.Duration
	// KeepOnTimeout leaves a timed-out process running; by default its
	// process group is killed.
	KeepOnTimeout bool
	// Stdout and Stderr receive a live copy of the output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// ProcessResult captures how an external process ended.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// ProcessRunner starts external processes under a deadline. It returns an
// error only when the process could not be started.
// This interface is defined locally in core to avoid importing integration.
type ProcessRunner interface {
	Run(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
}

// ToolArgs is the argument bundle handed to a security-tool collaborator.
type ToolArgs struct {
	Target   string
	Wordlist string
	Flags    []string
}

// ToolResult reports where a collaborator wrote its output.
type ToolResult struct {
	OutputPath string
	ExitCode   int
	TimedOut   bool
}

// ToolRunner forwards tool tasks to their collaborators.
type ToolRunner interface {
	HasTool(name string) bool
	RunTool(ctx context.Context, name string, args ToolArgs) (*ToolResult, error)
}

// nopEvents discards events when no event log is configured.
type nopEvents struct{}

func (nopEvents) LogEvent(string, map[string]any) error { return nil }

func eventsOrNop(e EventLogger) EventLogger {
	if e == nil {
		return nopEvents{}
	}
	return e
}
