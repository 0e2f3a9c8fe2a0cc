package observability

import (
	"fmt"
	"strings"
	"time"
)

// Metrics holds pipeline metrics derived from the event log.
type Metrics struct {
	Runs            int            `json:"runs"`
	RunsFailed      int            `json:"runs_failed"`
	Resolved        int            `json:"resolved"`
	Fallbacks       int            `json:"fallbacks"`
	Exhausted       int            `json:"exhausted"`
	AttemptFailures map[string]int `json:"attempt_failures"`
	FallbackRules   map[string]int `json:"fallback_rules"`
	TasksByType     map[string]int `json:"tasks_by_type"`
	Confirmed       int            `json:"confirmed"`
	Rejected        int            `json:"rejected"`
	Unconfirmed     int            `json:"unconfirmed"`
	Edits           int            `json:"edits"`
	DispatchByState map[string]int `json:"dispatch_by_status"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// FallbackRate is the share of resolved tasks that came from a fallback
// rule, in percent. It is zero when nothing was resolved.
func (m *Metrics) FallbackRate() float64 {
	total := m.Resolved + m.Fallbacks
	if total == 0 {
		return 0
	}
	return float64(m.Fallbacks) * 100 / float64(total)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event at or after since.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}
	return Aggregate(events), nil
}

// Aggregate folds events into Metrics.
func Aggregate(events []Event) *Metrics {
	m := &Metrics{
		AttemptFailures: make(map[string]int),
		FallbackRules:   make(map[string]int),
		TasksByType:     make(map[string]int),
		DispatchByState: make(map[string]int),
	}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "pipeline.started":
			m.Runs++
		case "pipeline.failed":
			m.RunsFailed++
		case "oracle.resolved":
			m.Resolved++
			if tt, ok := event.Data["task_type"].(string); ok {
				m.TasksByType[tt]++
			}
		case "oracle.fallback":
			m.Fallbacks++
			if rule, ok := event.Data["rule"].(string); ok {
				m.FallbackRules[rule]++
			}
			if tt, ok := event.Data["task_type"].(string); ok {
				m.TasksByType[tt]++
			}
		case "oracle.exhausted":
			m.Exhausted++
		case "oracle.attempt_failed":
			kind, _ := event.Data["kind"].(string)
			if kind == "" {
				kind = "unknown"
			}
			m.AttemptFailures[kind]++
		case "task.confirmed":
			m.Confirmed++
		case "task.rejected":
			m.Rejected++
		case "task.unconfirmed":
			m.Unconfirmed++
		case "task.enhanced":
			m.Edits++
		default:
			if status, ok := strings.CutPrefix(event.Type, "dispatch."); ok {
				m.DispatchByState[status]++
			}
		}
	}

	return m
}
