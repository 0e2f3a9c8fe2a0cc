package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// waitDelay bounds how long Wait keeps copying output after a kill.
const waitDelay = 2 * time.Second

// CLIExecConfig holds all parameters needed to run an external process.
type CLIExecConfig struct {
	// Shell runs Command as a command line through the platform shell
	// (sh -c, or cmd /c on Windows). Otherwise Command is the executable.
	Shell   bool
	Command string
	Args    []string
	Dir     string
	// Timeout of zero means no deadline beyond ctx.
	Timeout time.Duration
	// KeepOnTimeout stops waiting on timeout without killing the process.
	KeepOnTimeout bool
	Stdin         io.Reader
	Stdout        io.Writer
	Stderr        io.Writer
}

// CLIExecResult captures the outcome of an external process.
type CLIExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// CLIExecutor runs external processes under a deadline.
type CLIExecutor interface {
	// Exec runs the process and waits for it, the timeout or ctx. An error
	// is returned only when the process could not be started or ctx ended.
	Exec(ctx context.Context, config CLIExecConfig) (*CLIExecResult, error)
}

type cliExecutor struct {
	goos string
}

// NewCLIExecutor creates a new CLIExecutor.
func NewCLIExecutor() CLIExecutor {
	return &cliExecutor{goos: runtime.GOOS}
}

// ShellCommand returns the executable and arguments that run line through
// the shell of goos.
func ShellCommand(goos, line string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/c", line}
	}
	return "sh", []string{"-c", line}
}

func (e *cliExecutor) Exec(ctx context.Context, config CLIExecConfig) (*CLIExecResult, error) {
	name, args := config.Command, config.Args
	if config.Shell {
		name, args = ShellCommand(e.goos, config.Command)
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = config.Dir
	cmd.WaitDelay = waitDelay
	configureCommandProcess(cmd)

	// Output is always captured for the result and teed to the provided
	// writers when set.
	stdoutBuf, stderrBuf := &syncBuffer{}, &syncBuffer{}
	cmd.Stdout = teeWriter(stdoutBuf, config.Stdout)
	cmd.Stderr = teeWriter(stderrBuf, config.Stderr)
	if config.Stdin != nil {
		cmd.Stdin = config.Stdin
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executing %s: %w", name, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if config.Timeout > 0 {
		timer := time.NewTimer(config.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	result := &CLIExecResult{}
	finish := func() *CLIExecResult {
		result.Duration = time.Since(start)
		result.Stdout = stdoutBuf.String()
		result.Stderr = stderrBuf.String()
		return result
	}

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if err != nil {
			if !errors.As(err, &exitErr) {
				return finish(), fmt.Errorf("waiting for %s: %w", name, err)
			}
			result.ExitCode = exitErr.ExitCode()
		}
		return finish(), nil
	case <-deadline:
		result.TimedOut = true
		result.ExitCode = -1
		if !config.KeepOnTimeout {
			terminateCommandProcess(cmd)
			<-done
		}
		return finish(), nil
	case <-ctx.Done():
		terminateCommandProcess(cmd)
		<-done
		result.ExitCode = -1
		return finish(), ctx.Err()
	}
}

func teeWriter(buf io.Writer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// syncBuffer lets a process that outlives Exec keep writing while the
// result is read.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
