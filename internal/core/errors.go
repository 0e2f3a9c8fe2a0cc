package core

import (
	"fmt"
	"strings"
	"time"
)

// ProtocolError reports a reasoning-engine reply that did not carry the
// mandatory task card keys. Raw holds the reply verbatim for diagnosis.
type ProtocolError struct {
	Raw     string
	Matched int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("task card matched %d of %d mandatory keys (TASK_TYPE, EXPLANATION); raw reply: %q",
		e.Matched, mandatoryKeyCount, e.Raw)
}

// ProcessError reports a failure to launch or talk to an external process,
// or a non-zero exit where one is fatal to the stage.
type ProcessError struct {
	Stage    string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: process %q", e.Stage, e.Command)
	if e.Err != nil {
		fmt.Fprintf(&b, " failed to run: %v", e.Err)
	} else {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, " (stderr: %s)", s)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline exceeded at a suspension point.
type TimeoutError struct {
	Stage string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: deadline of %s exceeded", e.Stage, e.Limit)
}

// ValidationError reports a task that lacks a field required by its handler.
type ValidationError struct {
	TaskType string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("dispatch %s: %s", e.TaskType, e.Reason)
	}
	return fmt.Sprintf("dispatch %s: missing %s: %s", e.TaskType, e.Field, e.Reason)
}

// FallbackExhaustedError is returned when neither the reasoning engine nor
// any fallback rule produced a usable task.
type FallbackExhaustedError struct {
	Query   string
	Retries int
	Last    error
}

func (e *FallbackExhaustedError) Error() string {
	msg := fmt.Sprintf("oracle: no usable task for query %q after %d retries and no matching fallback rule", e.Query, e.Retries)
	if e.Last != nil {
		msg += fmt.Sprintf("; last error: %v", e.Last)
	}
	return msg
}

func (e *FallbackExhaustedError) Unwrap() error { return e.Last }
