package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/fenrir/internal/observability"
)

func TestParseSinceDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"empty defaults to 7d", "", false, ""},
		{"whitespace defaults to 7d", "  ", false, ""},
		{"valid 7d", "7d", false, ""},
		{"valid 30d", "30d", false, ""},
		{"valid 24h", "24h", false, ""},
		{"invalid suffix", "abc", true, "unsupported duration format"},
		{"invalid day number", "xd", true, "invalid day duration"},
		{"invalid hour number", "yh", true, "invalid hour duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSinceDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseSinceDuration_Window(t *testing.T) {
	got, err := parseSinceDuration("2d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Now().UTC().AddDate(0, 0, -2)
	if d := want.Sub(got); d < 0 || d > time.Minute {
		t.Errorf("since = %v, want about %v", got, want)
	}
}

type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

// withMetrics installs calc and resets the metrics flags for one test.
func withMetrics(t *testing.T, calc observability.MetricsCalculator) *bytes.Buffer {
	t.Helper()
	orig, origInit := MetricsCalc, initializer
	origJSON, origSince := metricsJSON, metricsSince
	t.Cleanup(func() {
		MetricsCalc, initializer = orig, origInit
		metricsJSON, metricsSince = origJSON, origSince
		metricsCmd.SetOut(nil)
	})
	MetricsCalc = calc
	initializer = nil
	metricsJSON = false
	metricsSince = "7d"

	var buf bytes.Buffer
	metricsCmd.SetOut(&buf)
	return &buf
}

func sampleMetrics() *observability.Metrics {
	oldest := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &observability.Metrics{
		Runs:            5,
		RunsFailed:      1,
		Resolved:        3,
		Fallbacks:       1,
		Exhausted:       1,
		AttemptFailures: map[string]int{"timeout": 2, "protocol": 1},
		FallbackRules:   map[string]int{"scan": 1},
		TasksByType:     map[string]int{"execute_command": 3, "nmap": 1},
		Confirmed:       3,
		Rejected:        1,
		DispatchByState: map[string]int{"succeeded": 2, "timed_out": 1},
		EventCount:      27,
		OldestEvent:     &oldest,
		NewestEvent:     &newest,
	}
}

func TestMetricsCmd_NilCalculator(t *testing.T) {
	withMetrics(t, nil)

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_InvalidSinceFormat(t *testing.T) {
	withMetrics(t, &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) {
		t.Fatal("Calculate should not be called")
		return nil, nil
	}})
	metricsSince = "bad"

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "parsing --since") {
		t.Errorf("err = %v, want parsing --since error", err)
	}
}

func TestMetricsCmd_CalculateError(t *testing.T) {
	withMetrics(t, &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) {
		return nil, fmt.Errorf("reading events: boom")
	}})

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "calculating metrics") {
		t.Errorf("err = %v, want calculating metrics error", err)
	}
}

func TestMetricsCmd_Text(t *testing.T) {
	buf := withMetrics(t, &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) {
		return sampleMetrics(), nil
	}})

	if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Runs:", "Resolved by fallback:", "1 (25%)",
		"Attempt failures:", "timeout:", "Fallback rules:", "scan:",
		"Dispatch results:", "timed_out:", "Oldest event:", "2026-03-01T08:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "protocol:") > strings.Index(out, "timeout:") {
		t.Error("expected counts sorted by key")
	}
}

func TestMetricsCmd_JSON(t *testing.T) {
	buf := withMetrics(t, &metricsMock{calcFn: func(time.Time) (*observability.Metrics, error) {
		return sampleMetrics(), nil
	}})
	metricsJSON = true

	if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if _, ok := got["dispatch_by_status"]; !ok {
		t.Errorf("expected dispatch_by_status key, got %v", got)
	}
}

func TestMetricsCmd_PassesSince(t *testing.T) {
	var gotSince time.Time
	withMetrics(t, &metricsMock{calcFn: func(since time.Time) (*observability.Metrics, error) {
		gotSince = since
		return &observability.Metrics{}, nil
	}})
	metricsSince = "24h"

	if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := time.Since(gotSince); d < 23*time.Hour || d > 25*time.Hour {
		t.Errorf("since is %v ago, want about 24h", d)
	}
}
