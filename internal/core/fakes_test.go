package core

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// fakeRunner replays scripted results and records every request.
type fakeRunner struct {
	mu       sync.Mutex
	requests []ProcessRequest
	runFn    func(req ProcessRequest) (*ProcessResult, error)
}

func (f *fakeRunner) Run(_ context.Context, req ProcessRequest) (*ProcessResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.runFn(req)
}

func (f *fakeRunner) calls() []ProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ProcessRequest(nil), f.requests...)
}

// scriptedRunner returns results in order, repeating the last one.
func scriptedRunner(results ...*ProcessResult) *fakeRunner {
	i := 0
	f := &fakeRunner{}
	f.runFn = func(ProcessRequest) (*ProcessResult, error) {
		r := results[min(i, len(results)-1)]
		i++
		return r, nil
	}
	return f
}

// recordingEvents captures events in order.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	r.data = append(r.data, data)
	return nil
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

// scriptedInput answers reads from a fixed list and then reports io.EOF.
type scriptedInput struct {
	mu    sync.Mutex
	lines []string
}

func newScriptedInput(lines ...string) *scriptedInput {
	return &scriptedInput{lines: lines}
}

func (s *scriptedInput) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// fakeTools records tool invocations.
type fakeTools struct {
	names []string
	calls []ToolArgs
	runFn func(name string, args ToolArgs) (*ToolResult, error)
}

func (f *fakeTools) HasTool(name string) bool {
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

func (f *fakeTools) RunTool(_ context.Context, name string, args ToolArgs) (*ToolResult, error) {
	f.calls = append(f.calls, args)
	if f.runFn != nil {
		return f.runFn(name, args)
	}
	return &ToolResult{OutputPath: "fenrir_logs/" + strings.ReplaceAll(args.Target, "/", "_")}, nil
}

// fakeAudit records audited tasks.
type fakeAudit struct {
	runIDs []string
	tasks  []models.Task
	err    error
}

func (f *fakeAudit) Record(runID string, task models.Task) error {
	f.runIDs = append(f.runIDs, runID)
	f.tasks = append(f.tasks, task)
	return f.err
}

func strPtr(s string) *string { return &s }

func confirmedTask(tt models.TaskType) models.Task {
	return models.Task{Type: tt, Explanation: "test task", IsConfirmed: true}
}
