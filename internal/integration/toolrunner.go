package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// Tool names understood by the ToolRunner.
const (
	ToolGobuster = "gobuster"
	ToolNmap     = "nmap"
	ToolSqlmap   = "sqlmap"
	ToolReport   = "generate_report"
)

// ToolRequest is the argument bundle for one tool run.
type ToolRequest struct {
	Target   string
	Wordlist string
	// Flags are passed through verbatim in order.
	Flags []string
}

// ToolRun reports where a tool wrote its output.
type ToolRun struct {
	OutputPath string
	ExitCode   int
	TimedOut   bool
}

// ToolRunnerConfig holds the directories and defaults shared by all tools.
type ToolRunnerConfig struct {
	LogDir          string
	ReportDir       string
	DefaultWordlist string
	// Timeout defaults to the Long segment limit.
	Timeout       time.Duration
	KillOnTimeout bool
	Stdout        io.Writer
	Stderr        io.Writer
	Now           func() time.Time
}

// ToolRunner runs the security-tool collaborators.
type ToolRunner interface {
	HasTool(name string) bool
	Names() []string
	Run(ctx context.Context, name string, req ToolRequest) (*ToolRun, error)
}

type toolFunc func(ctx context.Context, req ToolRequest) (*ToolRun, error)

type toolRunner struct {
	executor CLIExecutor
	cfg      ToolRunnerConfig
	tools    map[string]toolFunc
}

// NewToolRunner creates a ToolRunner that runs tools through executor.
func NewToolRunner(executor CLIExecutor, cfg ToolRunnerConfig) ToolRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = models.SegmentLong.MaxTimeout()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &toolRunner{executor: executor, cfg: cfg}
	r.tools = map[string]toolFunc{
		ToolGobuster: r.gobuster,
		ToolNmap:     r.nmap,
		ToolSqlmap:   r.sqlmap,
		ToolReport:   r.report,
	}
	return r
}

func (r *toolRunner) HasTool(name string) bool {
	_, ok := r.tools[name]
	return ok
}

func (r *toolRunner) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *toolRunner) Run(ctx context.Context, name string, req ToolRequest) (*ToolRun, error) {
	fn, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if strings.TrimSpace(req.Target) == "" {
		return nil, fmt.Errorf("%s: target is required", name)
	}
	return fn(ctx, req)
}

// SafeTargetName turns a URL or host into a directory name: the scheme is
// stripped and path separators become underscores. Names made only of dots
// become underscores so the result never refers to the log dir or its parent.
func SafeTargetName(target string) string {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(s)
	if strings.Trim(s, ".") == "" {
		return strings.Repeat("_", max(len(s), 1))
	}
	return s
}

// TargetLogDir is the directory holding every tool's output for target.
func (r *toolRunner) TargetLogDir(target string) string {
	return filepath.Join(r.cfg.LogDir, SafeTargetName(target))
}

func (r *toolRunner) gobuster(ctx context.Context, req ToolRequest) (*ToolRun, error) {
	wordlist := req.Wordlist
	if wordlist == "" {
		wordlist = r.cfg.DefaultWordlist
	}
	if _, err := os.Stat(wordlist); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("gobuster: wordlist %s not found; set tools.wordlist to another list such as /usr/share/wordlists/rockyou.txt", wordlist)
		}
		return nil, fmt.Errorf("gobuster: checking wordlist %s: %w", wordlist, err)
	}

	dir, err := r.ensureDir(r.TargetLogDir(req.Target))
	if err != nil {
		return nil, err
	}
	output := filepath.Join(dir, "gobuster_scan.log")

	args := []string{"dir", "-u", req.Target, "-w", wordlist}
	args = append(args, req.Flags...)
	args = append(args, "-o", output)
	return r.exec(ctx, ToolGobuster, args, output)
}

func (r *toolRunner) nmap(ctx context.Context, req ToolRequest) (*ToolRun, error) {
	dir, err := r.ensureDir(r.TargetLogDir(req.Target))
	if err != nil {
		return nil, err
	}
	output := filepath.Join(dir, "nmap_scan.xml")

	args := append([]string(nil), req.Flags...)
	args = append(args, "-oX", output, req.Target)
	return r.exec(ctx, ToolNmap, args, output)
}

func (r *toolRunner) sqlmap(ctx context.Context, req ToolRequest) (*ToolRun, error) {
	dir, err := r.ensureDir(filepath.Join(r.TargetLogDir(req.Target), "sqlmap"))
	if err != nil {
		return nil, err
	}

	args := []string{"--batch", "-u", req.Target, "--output-dir", dir}
	args = append(args, req.Flags...)
	return r.exec(ctx, ToolSqlmap, args, dir)
}

func (r *toolRunner) exec(ctx context.Context, name string, args []string, output string) (*ToolRun, error) {
	res, err := r.executor.Exec(ctx, CLIExecConfig{
		Command:       name,
		Args:          args,
		Timeout:       r.cfg.Timeout,
		KeepOnTimeout: !r.cfg.KillOnTimeout,
		Stdout:        r.cfg.Stdout,
		Stderr:        r.cfg.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &ToolRun{OutputPath: output, ExitCode: res.ExitCode, TimedOut: res.TimedOut}, nil
}

func (r *toolRunner) ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	return dir, nil
}
