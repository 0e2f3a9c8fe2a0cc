package models

import "time"

// OracleConfig controls how the external reasoning engine is invoked.
type OracleConfig struct {
	Command    string        `yaml:"command" mapstructure:"command"`
	Args       []string      `yaml:"args,omitempty" mapstructure:"args"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	Backoff    time.Duration `yaml:"backoff" mapstructure:"backoff"`
}

// EnhancerConfig bounds the fill/confirm/edit loop.
type EnhancerConfig struct {
	MaxIterations int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	ProbeDelay    time.Duration `yaml:"probe_delay" mapstructure:"probe_delay"`
}

// DispatchConfig controls command execution.
type DispatchConfig struct {
	KillOnTimeout bool `yaml:"kill_on_timeout" mapstructure:"kill_on_timeout"`
}

// InputConfig sizes the operator line reader.
type InputConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogsConfig holds the on-disk locations written by the pipeline.
type LogsConfig struct {
	AuditFile string `yaml:"audit_file" mapstructure:"audit_file"`
	EventFile string `yaml:"event_file" mapstructure:"event_file"`
	ToolDir   string `yaml:"tool_dir" mapstructure:"tool_dir"`
	ReportDir string `yaml:"report_dir" mapstructure:"report_dir"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// ToolsConfig holds defaults for the security-tool collaborators.
type ToolsConfig struct {
	Wordlist string `yaml:"wordlist" mapstructure:"wordlist"`
}

// FallbackConfig tunes the keyword fallback rules.
type FallbackConfig struct {
	BuildCommand string `yaml:"build_command" mapstructure:"build_command"`
}

// AlertsConfig tunes the alert engine over the event log.
type AlertsConfig struct {
	Window              time.Duration `yaml:"window" mapstructure:"window"`
	FallbackRatePercent int           `yaml:"fallback_rate_percent" mapstructure:"fallback_rate_percent"`
	MinRuns             int           `yaml:"min_runs" mapstructure:"min_runs"`
	MaxExhausted        int           `yaml:"max_exhausted" mapstructure:"max_exhausted"`
	MaxTimeouts         int           `yaml:"max_timeouts" mapstructure:"max_timeouts"`
	WebhookURL          string        `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// Config is the full fenrir configuration read from .fenrir.yaml.
type Config struct {
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Enhancer EnhancerConfig `yaml:"enhancer" mapstructure:"enhancer"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Logs     LogsConfig     `yaml:"logs" mapstructure:"logs"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Tools    ToolsConfig    `yaml:"tools" mapstructure:"tools"`
	Fallback FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
	Alerts   AlertsConfig   `yaml:"alerts" mapstructure:"alerts"`
}
