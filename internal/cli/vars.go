package cli

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/fenrir/internal/core"
	"github.com/valter-silva-au/fenrir/internal/integration"
	"github.com/valter-silva-au/fenrir/internal/observability"
)

// Service instances, set by the initializer registered in main.
var (
	Pipeline core.Pipeline
	Oracle   core.OracleClient
	Input    core.LineSource
	Logger   = zerolog.Nop()

	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	// Versions probes the external programs listed in ToolNames.
	Versions  integration.VersionChecker
	ToolNames []string
)

// InitOptions carries the global flags and streams of one invocation.
type InitOptions struct {
	ConfigFile string
	NoExec     bool
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
}

// InitFunc builds the services for one invocation and returns a function
// that releases them.
type InitFunc func(InitOptions) (func() error, error)

var initializer InitFunc

// SetInitializer registers the function commands call to build services.
func SetInitializer(f InitFunc) {
	initializer = f
}
