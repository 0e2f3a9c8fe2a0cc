// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the side-effect free fenrir stages as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/fenrir/internal/core"
	"github.com/valter-silva-au/fenrir/internal/observability"
	"github.com/valter-silva-au/fenrir/pkg/models"
)

// Server wraps fenrir services and exposes them as MCP tools. No tool
// dispatches a task.
type Server struct {
	server      *gomcp.Server
	oracle      core.OracleClient
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates an MCP server. oracle, metricsCalc and alertEngine may
// be nil; the tools that need them then report an error result.
func NewServer(oracle core.OracleClient, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		oracle:      oracle,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "fenrir", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	TaskType       string   `json:"task_type"`
	Explanation    string   `json:"explanation"`
	CommandToRun   string   `json:"command_to_run,omitempty"`
	TargetPath     string   `json:"target_path,omitempty"`
	Application    string   `json:"application,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	TimeSegment    string   `json:"time_segment"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	RetryCount     int      `json:"retry_count"`
}

type parseTaskCardInput struct {
	Card string `json:"card" jsonschema:"the raw task card text as replied by a reasoning engine"`
}

type classifyCommandInput struct {
	Command string `json:"command" jsonschema:"the shell command to classify"`
}

type classifyCommandOutput struct {
	Segment        string `json:"segment"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type resolveQueryInput struct {
	Query string `json:"query" jsonschema:"the natural-language request to resolve into a task"`
}

type resolveQueryOutput struct {
	RunID    string     `json:"run_id"`
	Task     taskOutput `json:"task"`
	Fallback bool       `json:"fallback"`
	Rule     string     `json:"rule,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	Runs             int            `json:"runs"`
	RunsFailed       int            `json:"runs_failed"`
	Resolved         int            `json:"resolved"`
	Fallbacks        int            `json:"fallbacks"`
	Exhausted        int            `json:"exhausted"`
	FallbackRate     float64        `json:"fallback_rate"`
	AttemptFailures  map[string]int `json:"attempt_failures"`
	FallbackRules    map[string]int `json:"fallback_rules"`
	TasksByType      map[string]int `json:"tasks_by_type"`
	Confirmed        int            `json:"confirmed"`
	Rejected         int            `json:"rejected"`
	Unconfirmed      int            `json:"unconfirmed"`
	DispatchByStatus map[string]int `json:"dispatch_by_status"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "parse_task_card",
		Description: "Parse a TASK_TYPE/EXPLANATION task card into a structured task, classified by expected run time.",
	}, s.handleParseTaskCard)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "classify_command",
		Description: "Classify a shell command as Quick, Medium or Long and return its execution timeout.",
	}, s.handleClassifyCommand)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_query",
		Description: "Resolve a natural-language request into a task using the reasoning engine and fallback rules. Nothing is executed.",
	}, s.handleResolveQuery)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get pipeline metrics from the event log: runs, fallbacks, attempt failures, confirmations and dispatch results.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (exhausted queries, high fallback rate, dispatch timeouts, unconfirmed tasks).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleParseTaskCard(_ context.Context, _ *gomcp.CallToolRequest, input parseTaskCardInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := core.ParseTaskCard(input.Card)
	if err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}
	core.Classify(&task)
	return nil, taskToOutput(task), nil
}

func (s *Server) handleClassifyCommand(_ context.Context, _ *gomcp.CallToolRequest, input classifyCommandInput) (*gomcp.CallToolResult, classifyCommandOutput, error) {
	if input.Command == "" {
		return errorResult("command is required"), classifyCommandOutput{}, nil
	}
	seg := core.ClassifyCommand(input.Command)
	return nil, classifyCommandOutput{
		Segment:        string(seg),
		TimeoutSeconds: int(seg.MaxTimeout() / time.Second),
	}, nil
}

func (s *Server) handleResolveQuery(ctx context.Context, _ *gomcp.CallToolRequest, input resolveQueryInput) (*gomcp.CallToolResult, resolveQueryOutput, error) {
	if s.oracle == nil {
		return errorResult("oracle not available"), resolveQueryOutput{}, nil
	}
	if input.Query == "" {
		return errorResult("query is required"), resolveQueryOutput{}, nil
	}

	runID := uuid.NewString()
	res, err := s.oracle.Resolve(ctx, runID, input.Query)
	if err != nil {
		var fe *core.FallbackExhaustedError
		if errors.As(err, &fe) {
			return errorResult(fmt.Sprintf("no task for %q: %s", input.Query, err)), resolveQueryOutput{}, nil
		}
		return errorResult(fmt.Sprintf("resolving query: %s", err)), resolveQueryOutput{}, nil
	}

	return nil, resolveQueryOutput{
		RunID:    runID,
		Task:     taskToOutput(res.Task),
		Fallback: res.Fallback,
		Rule:     res.Rule,
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (no event log configured)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		Runs:             m.Runs,
		RunsFailed:       m.RunsFailed,
		Resolved:         m.Resolved,
		Fallbacks:        m.Fallbacks,
		Exhausted:        m.Exhausted,
		FallbackRate:     m.FallbackRate(),
		AttemptFailures:  m.AttemptFailures,
		FallbackRules:    m.FallbackRules,
		TasksByType:      m.TasksByType,
		Confirmed:        m.Confirmed,
		Rejected:         m.Rejected,
		Unconfirmed:      m.Unconfirmed,
		DispatchByStatus: m.DispatchByState,
		EventCount:       m.EventCount,
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (no event log configured)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		TaskType:    string(t.Type),
		Explanation: t.Explanation,
		Tags:        t.Tags,
		TimeSegment: models.SegmentLabel(t.TimeSegment),
		RetryCount:  t.RetryCount,
	}
	out.CommandToRun, _ = t.Command()
	out.TargetPath, _ = t.Target()
	out.Application, _ = t.App()
	if t.TimeSegment != nil {
		out.TimeoutSeconds = int(t.TimeSegment.MaxTimeout() / time.Second)
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		AttemptFailures:  make(map[string]int),
		FallbackRules:    make(map[string]int),
		TasksByType:      make(map[string]int),
		DispatchByStatus: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a window such as "7d" or "24h" into the instant that
// far before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
