// Package core contains the fenrir pipeline: the task card protocol, the
// time-segment classifier, the oracle with its retry and fallback logic,
// task enhancement and confirmation, dispatch, and configuration.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// ConfigFileName is the configuration file looked up in the base path.
const ConfigFileName = ".fenrir.yaml"

// DefaultWordlist is handed to gobuster when no wordlist is configured.
const DefaultWordlist = "/usr/share/wordlists/dirbuster/directory-list-2.3-medium.txt"

// ConfigurationManager loads and validates the fenrir configuration.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

type viperConfigManager struct {
	basePath string
	// file overrides the lookup in basePath when set.
	file string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .fenrir.yaml from basePath, or from file when file is not empty.
// FENRIR_* environment variables override file values.
func NewConfigurationManager(basePath, file string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath, file: file}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *models.Config {
	return &models.Config{
		Oracle: models.OracleConfig{
			Command:    "gemini",
			Timeout:    60 * time.Second,
			MaxRetries: 2,
			Backoff:    500 * time.Millisecond,
		},
		Enhancer: models.EnhancerConfig{
			MaxIterations: 5,
			ProbeDelay:    200 * time.Millisecond,
		},
		Dispatch: models.DispatchConfig{KillOnTimeout: true},
		Input:    models.InputConfig{Workers: 2},
		Logs: models.LogsConfig{
			AuditFile: "fenrir_tasks.log",
			EventFile: ".fenrir_events.jsonl",
			ToolDir:   "fenrir_logs",
			ReportDir: "fenrir_reports",
		},
		Log:      models.LogConfig{Level: "warn"},
		Tools:    models.ToolsConfig{Wordlist: DefaultWordlist},
		Fallback: models.FallbackConfig{BuildCommand: DefaultBuildCommand},
		Alerts: models.AlertsConfig{
			Window:              24 * time.Hour,
			FallbackRatePercent: 50,
			MinRuns:             4,
			MaxExhausted:        3,
			MaxTimeouts:         3,
		},
	}
}

func (cm *viperConfigManager) Load() (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	if cm.file != "" {
		v.SetConfigFile(cm.file)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
		v.AddConfigPath(cm.basePath)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("oracle.command", def.Oracle.Command)
	v.SetDefault("oracle.args", def.Oracle.Args)
	v.SetDefault("oracle.timeout", def.Oracle.Timeout)
	v.SetDefault("oracle.max_retries", def.Oracle.MaxRetries)
	v.SetDefault("oracle.backoff", def.Oracle.Backoff)
	v.SetDefault("enhancer.max_iterations", def.Enhancer.MaxIterations)
	v.SetDefault("enhancer.probe_delay", def.Enhancer.ProbeDelay)
	v.SetDefault("dispatch.kill_on_timeout", def.Dispatch.KillOnTimeout)
	v.SetDefault("input.workers", def.Input.Workers)
	v.SetDefault("logs.audit_file", def.Logs.AuditFile)
	v.SetDefault("logs.event_file", def.Logs.EventFile)
	v.SetDefault("logs.tool_dir", def.Logs.ToolDir)
	v.SetDefault("logs.report_dir", def.Logs.ReportDir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("tools.wordlist", def.Tools.Wordlist)
	v.SetDefault("fallback.build_command", def.Fallback.BuildCommand)
	v.SetDefault("alerts.window", def.Alerts.Window)
	v.SetDefault("alerts.fallback_rate_percent", def.Alerts.FallbackRatePercent)
	v.SetDefault("alerts.min_runs", def.Alerts.MinRuns)
	v.SetDefault("alerts.max_exhausted", def.Alerts.MaxExhausted)
	v.SetDefault("alerts.max_timeouts", def.Alerts.MaxTimeouts)
	v.SetDefault("alerts.webhook_url", def.Alerts.WebhookURL)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cm.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", cm.describe(), err)
		}
	}

	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cm.describe(), err)
	}
	return cfg, nil
}

func (cm *viperConfigManager) describe() string {
	if cm.file != "" {
		return cm.file
	}
	return ConfigFileName
}

// ValidateConfig reports every invalid value in one error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if strings.TrimSpace(cfg.Oracle.Command) == "" {
		errs = append(errs, "oracle.command must not be empty")
	}
	if cfg.Oracle.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("oracle.timeout must be positive, got %s", cfg.Oracle.Timeout))
	}
	if cfg.Oracle.MaxRetries < 0 || cfg.Oracle.MaxRetries > 5 {
		errs = append(errs, fmt.Sprintf("oracle.max_retries %d is invalid, must be between 0 and 5", cfg.Oracle.MaxRetries))
	}
	if cfg.Oracle.Backoff < 0 {
		errs = append(errs, fmt.Sprintf("oracle.backoff must not be negative, got %s", cfg.Oracle.Backoff))
	}
	if cfg.Enhancer.MaxIterations < 1 || cfg.Enhancer.MaxIterations > 20 {
		errs = append(errs, fmt.Sprintf("enhancer.max_iterations %d is invalid, must be between 1 and 20", cfg.Enhancer.MaxIterations))
	}
	if cfg.Enhancer.ProbeDelay < 0 {
		errs = append(errs, fmt.Sprintf("enhancer.probe_delay must not be negative, got %s", cfg.Enhancer.ProbeDelay))
	}
	if cfg.Input.Workers < 1 {
		errs = append(errs, fmt.Sprintf("input.workers must be at least 1, got %d", cfg.Input.Workers))
	}
	if cfg.Logs.AuditFile == "" {
		errs = append(errs, "logs.audit_file must not be empty")
	}
	if cfg.Alerts.FallbackRatePercent < 0 || cfg.Alerts.FallbackRatePercent > 100 {
		errs = append(errs, fmt.Sprintf("alerts.fallback_rate_percent %d is invalid, must be between 0 and 100", cfg.Alerts.FallbackRatePercent))
	}
	if cfg.Alerts.Window < 0 {
		errs = append(errs, fmt.Sprintf("alerts.window must not be negative, got %s", cfg.Alerts.Window))
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid: %v", cfg.Log.Level, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
