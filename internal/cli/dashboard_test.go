package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/valter-silva-au/fenrir/internal/observability"
)

// mockDashboardMetrics implements observability.MetricsCalculator.
type mockDashboardMetrics struct {
	metrics *observability.Metrics
	err     error
}

func (m *mockDashboardMetrics) Calculate(_ time.Time) (*observability.Metrics, error) {
	return m.metrics, m.err
}

// mockDashboardAlerts implements observability.AlertEngine.
type mockDashboardAlerts struct {
	alerts []observability.Alert
	err    error
}

func (m *mockDashboardAlerts) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}

func TestDashboardModel_Init(t *testing.T) {
	m := newDashboardModel()

	if m.activePanel != panelPipeline {
		t.Errorf("expected activePanel = %d, got %d", panelPipeline, m.activePanel)
	}
	if !m.loading {
		t.Error("expected loading = true on init")
	}
	if cmd := m.Init(); cmd == nil {
		t.Error("expected Init to return a non-nil command")
	}
}

func TestDashboardModel_QuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEscape},
		{Type: tea.KeyCtrlC},
	}
	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			m := newDashboardModel()
			m.loading = false

			_, cmd := m.Update(key)
			if cmd == nil {
				t.Fatal("expected tea.Quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected tea.QuitMsg")
			}
		})
	}
}

func TestDashboardModel_KeyTab(t *testing.T) {
	m := newDashboardModel()

	want := []int{panelOutcomes, panelAlerts, panelPipeline}
	for i, w := range want {
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if cmd != nil {
			t.Error("expected no command from tab key")
		}
		m = updated.(dashboardModel)
		if m.activePanel != w {
			t.Errorf("tab %d: activePanel = %d, want %d", i+1, m.activePanel, w)
		}
	}
}

func TestDashboardModel_KeyShiftTab(t *testing.T) {
	m := newDashboardModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if cmd != nil {
		t.Error("expected no command from shift+tab")
	}
	if dm := updated.(dashboardModel); dm.activePanel != panelAlerts {
		t.Errorf("expected panel %d after shift+tab from 0, got %d", panelAlerts, dm.activePanel)
	}
}

func TestDashboardModel_KeyR(t *testing.T) {
	m := newDashboardModel()
	m.loading = false

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if !updated.(dashboardModel).loading {
		t.Error("expected loading = true after pressing r")
	}
	if cmd == nil {
		t.Error("expected a command (loadData) from r key")
	}
}

func TestDashboardModel_DataLoaded(t *testing.T) {
	m := newDashboardModel()

	msg := dataLoadedMsg{
		metrics: &metricsSnapshot{
			runs:       8,
			resolved:   6,
			fallbacks:  2,
			confirmed:  5,
			dispatch:   map[string]int{"succeeded": 4, "timed_out": 1},
			eventCount: 42,
		},
		alerts: []alertSnapshot{
			{severity: "high", message: "queries exhausted", time: "2026-01-15 10:30 UTC"},
			{severity: "low", message: "tasks unconfirmed", time: "2026-01-15 10:30 UTC"},
		},
	}

	updated, cmd := m.Update(msg)
	if cmd != nil {
		t.Error("expected no command after dataLoadedMsg")
	}

	dm := updated.(dashboardModel)
	if dm.loading {
		t.Error("expected loading = false after data loaded")
	}
	if dm.err != nil {
		t.Errorf("expected no error, got: %v", dm.err)
	}
	if dm.metricsData == nil {
		t.Fatal("expected metricsData to be set")
	}
	if dm.metricsData.runs != 8 {
		t.Errorf("runs = %d, want 8", dm.metricsData.runs)
	}
	if dm.metricsData.dispatch["succeeded"] != 4 {
		t.Errorf("dispatch[succeeded] = %d, want 4", dm.metricsData.dispatch["succeeded"])
	}
	if len(dm.alerts) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(dm.alerts))
	}
}

func TestDashboardModel_DataLoadedError(t *testing.T) {
	m := newDashboardModel()

	updated, _ := m.Update(dataLoadedMsg{err: errors.New("connection failed")})
	dm := updated.(dashboardModel)
	if dm.loading {
		t.Error("expected loading = false after error")
	}
	if dm.err == nil || dm.err.Error() != "connection failed" {
		t.Errorf("err = %v, want connection failed", dm.err)
	}

	dm.width = 100
	if !strings.Contains(dm.View(), "connection failed") {
		t.Error("expected error in view")
	}
}

func TestDashboardModel_WindowResize(t *testing.T) {
	m := newDashboardModel()

	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	if cmd != nil {
		t.Error("expected no command from window resize")
	}
	dm := updated.(dashboardModel)
	if dm.width != 200 || dm.height != 50 {
		t.Errorf("size = %dx%d, want 200x50", dm.width, dm.height)
	}
}

func TestDashboardModel_ViewLoading(t *testing.T) {
	m := newDashboardModel()
	if m.View() != "Loading..." {
		t.Error("expected placeholder before the first window size")
	}

	m.width = 100
	if !strings.Contains(m.View(), "Loading data") {
		t.Error("expected loading view to contain 'Loading data'")
	}
}

func TestDashboardModel_ViewWithData(t *testing.T) {
	m := newDashboardModel()
	m.width = 130
	m.height = 40
	m.loading = false
	m.metricsData = &metricsSnapshot{
		runs:         4,
		resolved:     2,
		fallbacks:    2,
		fallbackRate: 50,
		confirmed:    3,
		dispatch:     map[string]int{"succeeded": 2, "timed_out": 1},
		eventCount:   20,
	}
	m.alerts = []alertSnapshot{
		{severity: "medium", message: "fallback rate is 50%"},
	}

	view := m.View()
	for _, want := range []string{"Pipeline", "Outcomes", "Alerts", "timed_out", "fallback rate is 50%", "50%"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestDashboardModel_ViewVerticalLayout(t *testing.T) {
	m := newDashboardModel()
	m.width = 80
	m.height = 40
	m.loading = false

	view := m.View()
	if !strings.Contains(view, "No metrics available") {
		t.Error("expected empty metrics message")
	}
	if !strings.Contains(view, "No active alerts") {
		t.Error("expected empty alerts message")
	}
}

func TestDashboardLoadData(t *testing.T) {
	origMetrics := MetricsCalc
	origAlerts := AlertEngine
	defer func() {
		MetricsCalc = origMetrics
		AlertEngine = origAlerts
	}()

	now := time.Now().UTC()
	MetricsCalc = &mockDashboardMetrics{
		metrics: &observability.Metrics{
			Runs:            4,
			Resolved:        1,
			Fallbacks:       3,
			Confirmed:       2,
			Unconfirmed:     1,
			DispatchByState: map[string]int{"succeeded": 2},
			EventCount:      15,
		},
	}
	AlertEngine = &mockDashboardAlerts{
		alerts: []observability.Alert{
			{Severity: observability.SeverityLow, Message: "tasks unconfirmed", TriggeredAt: now},
			{Severity: observability.SeverityHigh, Message: "queries exhausted", TriggeredAt: now},
		},
	}

	data, ok := loadData().(dataLoadedMsg)
	if !ok {
		t.Fatal("expected dataLoadedMsg")
	}
	if data.err != nil {
		t.Fatalf("unexpected error: %v", data.err)
	}
	if data.metrics == nil {
		t.Fatal("expected metrics to be set")
	}
	if data.metrics.runs != 4 || data.metrics.fallbacks != 3 {
		t.Errorf("runs/fallbacks = %d/%d, want 4/3", data.metrics.runs, data.metrics.fallbacks)
	}
	if data.metrics.fallbackRate != 75 {
		t.Errorf("fallbackRate = %v, want 75", data.metrics.fallbackRate)
	}
	if len(data.alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(data.alerts))
	}
	if data.alerts[0].severity != "high" {
		t.Errorf("expected high severity first, got %q", data.alerts[0].severity)
	}
}

func TestDashboardLoadData_MetricsError(t *testing.T) {
	origMetrics := MetricsCalc
	defer func() { MetricsCalc = origMetrics }()
	MetricsCalc = &mockDashboardMetrics{err: errors.New("disk gone")}

	data := loadData().(dataLoadedMsg)
	if data.err == nil || !strings.Contains(data.err.Error(), "loading metrics") {
		t.Errorf("err = %v, want loading metrics error", data.err)
	}
}

func TestDashboardCmd_NilMetricsCalc(t *testing.T) {
	origMetrics := MetricsCalc
	origInit := initializer
	defer func() {
		MetricsCalc = origMetrics
		initializer = origInit
	}()
	MetricsCalc = nil
	initializer = nil

	err := dashboardCmd.RunE(dashboardCmd, nil)
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "metrics calculator not initialized") {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestSeverityRank(t *testing.T) {
	if !(severityRank("high") < severityRank("medium") && severityRank("medium") < severityRank("low")) {
		t.Error("expected high < medium < low")
	}
	if severityRank("other") <= severityRank("low") {
		t.Error("expected unknown severities last")
	}
}
