package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition. Observed and Threshold are
// in the unit of the condition (a count, or a percentage for the fallback
// rate); Counts holds the event tallies the condition was computed from.
type Alert struct {
	ID          string         `json:"id"`
	Condition   string         `json:"condition"`
	Severity    AlertSeverity  `json:"severity"`
	Message     string         `json:"message"`
	TriggeredAt time.Time      `json:"triggered_at"`
	Window      time.Duration  `json:"window,omitempty"`
	Observed    float64        `json:"observed"`
	Threshold   float64        `json:"threshold"`
	Counts      map[string]int `json:"counts,omitempty"`
}

// AlertThresholds configures when alerts fire. Counts are evaluated over
// the trailing Window.
type AlertThresholds struct {
	Window time.Duration `yaml:"window" json:"window"`
	// FallbackRatePercent fires once MinRuns tasks were resolved and at
	// least this share came from fallback rules.
	FallbackRatePercent int `yaml:"fallback_rate_percent" json:"fallback_rate_percent"`
	MinRuns             int `yaml:"min_runs" json:"min_runs"`
	MaxExhausted        int `yaml:"max_exhausted" json:"max_exhausted"`
	MaxTimeouts         int `yaml:"max_timeouts" json:"max_timeouts"`
}

// DefaultAlertThresholds returns the thresholds used without configuration.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		Window:              24 * time.Hour,
		FallbackRatePercent: 50,
		MinRuns:             4,
		MaxExhausted:        3,
		MaxTimeouts:         3,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate reads the events inside the window and returns every triggered
// alert, most severe first.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	filter := EventFilter{}
	if ae.thresholds.Window > 0 {
		since := now.Add(-ae.thresholds.Window)
		filter.Since = &since
	}
	events, err := ae.eventLog.Read(filter)
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	m := Aggregate(events)

	var alerts []Alert
	alerts = append(alerts, ae.checkExhausted(m, now)...)
	alerts = append(alerts, ae.checkFallbackRate(m, now)...)
	alerts = append(alerts, ae.checkTimeouts(m, now)...)
	alerts = append(alerts, ae.checkUnconfirmed(m, now)...)
	return alerts, nil
}

// checkExhausted fires when queries ended with no task at all.
func (ae *alertEngine) checkExhausted(m *Metrics, now time.Time) []Alert {
	if ae.thresholds.MaxExhausted <= 0 || m.Exhausted < ae.thresholds.MaxExhausted {
		return nil
	}
	return []Alert{{
		ID:          "oracle-exhausted",
		Condition:   "oracle_exhausted",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d queries could not be resolved by the reasoning engine or any fallback rule", m.Exhausted),
		TriggeredAt: now,
		Window:      ae.thresholds.Window,
		Observed:    float64(m.Exhausted),
		Threshold:   float64(ae.thresholds.MaxExhausted),
		Counts:      map[string]int{"runs": m.Runs, "exhausted": m.Exhausted},
	}}
}

// checkFallbackRate fires when the reasoning engine is mostly bypassed.
func (ae *alertEngine) checkFallbackRate(m *Metrics, now time.Time) []Alert {
	total := m.Resolved + m.Fallbacks
	if ae.thresholds.FallbackRatePercent <= 0 || total == 0 || total < ae.thresholds.MinRuns {
		return nil
	}
	rate := m.FallbackRate()
	if rate < float64(ae.thresholds.FallbackRatePercent) {
		return nil
	}
	return []Alert{{
		ID:          "fallback-rate",
		Condition:   "fallback_rate_high",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%.0f%% of %d tasks came from fallback rules (threshold %d%%)", rate, total, ae.thresholds.FallbackRatePercent),
		TriggeredAt: now,
		Window:      ae.thresholds.Window,
		Observed:    rate,
		Threshold:   float64(ae.thresholds.FallbackRatePercent),
		Counts:      map[string]int{"runs": m.Runs, "resolved": m.Resolved, "fallbacks": m.Fallbacks},
	}}
}

// checkTimeouts fires when dispatched commands keep hitting their limit.
func (ae *alertEngine) checkTimeouts(m *Metrics, now time.Time) []Alert {
	n := m.DispatchByState["timed_out"]
	if ae.thresholds.MaxTimeouts <= 0 || n < ae.thresholds.MaxTimeouts {
		return nil
	}
	dispatched := 0
	for _, c := range m.DispatchByState {
		dispatched += c
	}
	return []Alert{{
		ID:          "dispatch-timeouts",
		Condition:   "dispatch_timeouts",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("%d dispatched commands exceeded their time segment limit", n),
		TriggeredAt: now,
		Window:      ae.thresholds.Window,
		Observed:    float64(n),
		Threshold:   float64(ae.thresholds.MaxTimeouts),
		Counts:      map[string]int{"dispatched": dispatched, "timed_out": n},
	}}
}

// checkUnconfirmed fires when enhancement loops keep running out. The
// confirmed count is the threshold.
func (ae *alertEngine) checkUnconfirmed(m *Metrics, now time.Time) []Alert {
	if m.Unconfirmed == 0 || m.Unconfirmed <= m.Confirmed {
		return nil
	}
	return []Alert{{
		ID:          "unconfirmed-tasks",
		Condition:   "tasks_unconfirmed",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d tasks were left unconfirmed against %d confirmed", m.Unconfirmed, m.Confirmed),
		TriggeredAt: now,
		Window:      ae.thresholds.Window,
		Observed:    float64(m.Unconfirmed),
		Threshold:   float64(m.Confirmed),
		Counts:      map[string]int{"confirmed": m.Confirmed, "unconfirmed": m.Unconfirmed, "rejected": m.Rejected},
	}}
}
