// Package internal provides the App struct that wires the fenrir pipeline
// together and hands it to the CLI layer.
package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/fenrir/internal/cli"
	"github.com/valter-silva-au/fenrir/internal/core"
	"github.com/valter-silva-au/fenrir/internal/integration"
	"github.com/valter-silva-au/fenrir/internal/observability"
	"github.com/valter-silva-au/fenrir/pkg/models"
)

// Options are the per-invocation settings the CLI passes to NewApp.
type Options struct {
	// ConfigFile overrides the .fenrir.yaml lookup in the base path.
	ConfigFile string
	NoExec     bool
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
}

// App holds all service dependencies of fenrir.
type App struct {
	BasePath string
	Config   *models.Config
	Logger   zerolog.Logger

	ConfigMgr core.ConfigurationManager

	// Operator input shared by the prompt loop and the confirmation
	// controller.
	Input   *core.LineReader
	Confirm core.ConfirmationController

	// Integration services
	Executor integration.CLIExecutor
	Tools    integration.ToolRunner
	Versions integration.VersionChecker

	// Core services
	Oracle     core.OracleClient
	Enhancer   core.TaskEnhancer
	Dispatcher core.Dispatcher
	Pipeline   core.Pipeline

	// Observability
	TaskLog     observability.TaskLog
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp loads configuration from basePath and wires every component.
func NewApp(basePath string, opts Options) (*App, error) {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath, opts.ConfigFile)
	cfg, err := app.ConfigMgr.Load()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = observability.NewLogger(opts.Err, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	// --- Observability ---
	app.TaskLog = observability.NewFileTaskLog(app.resolve(cfg.Logs.AuditFile))
	if cfg.Logs.EventFile != "" {
		app.EventLog, err = observability.NewJSONLEventLog(app.resolve(cfg.Logs.EventFile))
		if err != nil {
			// Non-fatal: run without metrics and alerts.
			app.Logger.Warn().Err(err).Msg("event log disabled")
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(cfg.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Alerts.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Alerts.WebhookURL)
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
	}

	// --- Integration services ---
	app.Executor = integration.NewCLIExecutor()
	app.Tools = integration.NewToolRunner(app.Executor, integration.ToolRunnerConfig{
		LogDir:          app.resolve(cfg.Logs.ToolDir),
		ReportDir:       app.resolve(cfg.Logs.ReportDir),
		DefaultWordlist: cfg.Tools.Wordlist,
		Timeout:         models.SegmentLong.MaxTimeout(),
		KillOnTimeout:   cfg.Dispatch.KillOnTimeout,
		Stdout:          opts.Out,
		Stderr:          opts.Err,
	})
	app.Versions = integration.NewVersionChecker(app.Executor)
	runner := &processRunnerAdapter{exec: app.Executor}

	// --- Operator input ---
	app.Input = core.NewLineReader(opts.In, core.NewInputPool(cfg.Input.Workers))
	app.Confirm = core.NewConfirmationController(app.Input, opts.Out)

	// --- Core services ---
	app.Oracle = core.NewOracleClient(core.OracleOptions{
		Config:       cfg.Oracle,
		BuildCommand: cfg.Fallback.BuildCommand,
		Runner:       runner,
		Events:       events,
		Logger:       app.Logger,
	})
	app.Enhancer = core.NewTaskEnhancer(core.EnhancerOptions{
		Config:  cfg.Enhancer,
		Confirm: app.Confirm,
		Out:     opts.Out,
		Events:  events,
		Logger:  app.Logger,
	})
	app.Dispatcher = core.NewDispatcher(core.DispatcherOptions{
		Runner:        runner,
		Tools:         &toolRunnerAdapter{tools: app.Tools},
		Confirm:       app.Confirm,
		Out:           opts.Out,
		Stdout:        opts.Out,
		Stderr:        opts.Err,
		KillOnTimeout: cfg.Dispatch.KillOnTimeout,
		Wordlist:      cfg.Tools.Wordlist,
		Events:        events,
		Logger:        app.Logger,
	})
	app.Pipeline = core.NewPipeline(core.PipelineOptions{
		Oracle:     app.Oracle,
		Audit:      app.TaskLog,
		Enhancer:   app.Enhancer,
		Dispatcher: app.Dispatcher,
		Out:        opts.Out,
		NoExec:     opts.NoExec,
		Events:     events,
		Logger:     app.Logger,
	})

	return app, nil
}

// Wire copies the services into the CLI package-level variables.
func (a *App) Wire() {
	cli.Pipeline = a.Pipeline
	cli.Oracle = a.Oracle
	cli.Input = a.Input
	cli.EventLog = a.EventLog
	cli.AlertEngine = a.AlertEngine
	cli.MetricsCalc = a.MetricsCalc
	cli.Notifier = a.Notifier
	cli.Logger = a.Logger
	cli.Versions = a.Versions
	cli.ToolNames = a.externalTools()
}

// externalTools lists the programs fenrir shells out to: the reasoning
// engine followed by the scanners.
func (a *App) externalTools() []string {
	names := []string{a.Config.Oracle.Command}
	for _, n := range a.Tools.Names() {
		if n != integration.ToolReport {
			names = append(names, n)
		}
	}
	return names
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// resolve anchors a relative log path at the base path.
func (a *App) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.BasePath, p)
}

// Initializer returns the CLI hook that builds and wires an App for one
// command invocation.
func Initializer(basePath string) cli.InitFunc {
	return func(o cli.InitOptions) (func() error, error) {
		app, err := NewApp(basePath, Options{
			ConfigFile: o.ConfigFile,
			NoExec:     o.NoExec,
			In:         o.In,
			Out:        o.Out,
			Err:        o.Err,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing fenrir: %w", err)
		}
		app.Wire()
		return app.Close, nil
	}
}

// ResolveBasePath determines the fenrir base directory. It checks the
// FENRIR_HOME env var, then walks up from the working directory looking for
// .fenrir.yaml, and falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("FENRIR_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

func alertThresholds(c models.AlertsConfig) observability.AlertThresholds {
	th := observability.DefaultAlertThresholds()
	if c.Window > 0 {
		th.Window = c.Window
	}
	if c.FallbackRatePercent > 0 {
		th.FallbackRatePercent = c.FallbackRatePercent
	}
	if c.MinRuns > 0 {
		th.MinRuns = c.MinRuns
	}
	if c.MaxExhausted > 0 {
		th.MaxExhausted = c.MaxExhausted
	}
	if c.MaxTimeouts > 0 {
		th.MaxTimeouts = c.MaxTimeouts
	}
	return th
}

// --- Adapters ---

// processRunnerAdapter adapts integration.CLIExecutor to core.ProcessRunner.
type processRunnerAdapter struct {
	exec integration.CLIExecutor
}

func (a *processRunnerAdapter) Run(ctx context.Context, req core.ProcessRequest) (*core.ProcessResult, error) {
	res, err := a.exec.Exec(ctx, integration.CLIExecConfig{
		Shell:         req.Shell,
		Command:       req.Command,
		Args:          req.Args,
		Timeout:       req.Timeout,
		KeepOnTimeout: req.KeepOnTimeout,
		Stdout:        req.Stdout,
		Stderr:        req.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return &core.ProcessResult{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}, nil
}

// toolRunnerAdapter adapts integration.ToolRunner to core.ToolRunner.
type toolRunnerAdapter struct {
	tools integration.ToolRunner
}

func (a *toolRunnerAdapter) HasTool(name string) bool {
	return a.tools.HasTool(name)
}

func (a *toolRunnerAdapter) RunTool(ctx context.Context, name string, args core.ToolArgs) (*core.ToolResult, error) {
	run, err := a.tools.Run(ctx, name, integration.ToolRequest{
		Target:   args.Target,
		Wordlist: args.Wordlist,
		Flags:    args.Flags,
	})
	if err != nil {
		return nil, err
	}
	return &core.ToolResult{OutputPath: run.OutputPath, ExitCode: run.ExitCode, TimedOut: run.TimedOut}, nil
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	runID, _ := data["run_id"].(string)
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   observability.LevelForType(eventType),
		Type:    eventType,
		RunID:   runID,
		Message: observability.MessageForType(eventType),
		Data:    data,
	})
}
