package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/valter-silva-au/fenrir/internal/core"
)

// fakePipeline records queries and returns a scripted error per query.
type fakePipeline struct {
	queries []string
	errs    map[string]error
}

func (f *fakePipeline) Run(_ context.Context, query string) (*core.PipelineResult, error) {
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return &core.PipelineResult{RunID: fmt.Sprintf("run-%d", len(f.queries))}, nil
}

// runRoot executes the root command with args and stdin, using p as the
// pipeline.
func runRoot(t *testing.T, p core.Pipeline, stdin string, args ...string) (string, string, error) {
	t.Helper()
	origPipeline, origInput, origInit := Pipeline, Input, initializer
	t.Cleanup(func() {
		Pipeline, Input, initializer = origPipeline, origInput, origInit
		noExec = false
		configFile = ""
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	Pipeline = p
	Input = nil
	initializer = nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := Execute()
	return stdout.String(), stderr.String(), err
}

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := appVersion, appCommit, appDate
	defer func() {
		appVersion, appCommit, appDate = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.2.3", "abc1234", "2026-02-13")

	if appVersion != "1.2.3" {
		t.Errorf("appVersion = %q, want 1.2.3", appVersion)
	}
	if appCommit != "abc1234" {
		t.Errorf("appCommit = %q, want abc1234", appCommit)
	}
	if appDate != "2026-02-13" {
		t.Errorf("appDate = %q, want 2026-02-13", appDate)
	}
}

func TestExecute_UnknownFlag(t *testing.T) {
	_, _, err := runRoot(t, &fakePipeline{}, "", "--nonexistent-flag")
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "unknown flag") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecute_VersionSubcommand(t *testing.T) {
	origVersion, origCommit, origDate := appVersion, appCommit, appDate
	defer func() {
		appVersion, appCommit, appDate = origVersion, origCommit, origDate
	}()
	SetVersionInfo("test-ver", "test-commit", "test-date")

	p := &fakePipeline{}
	out, _, err := runRoot(t, p, "", "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"fenrir test-ver", "test-commit", "test-date"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q: %q", want, out)
		}
	}
	if len(p.queries) != 0 {
		t.Errorf("version must not run the pipeline, ran %v", p.queries)
	}
}

func TestCommandRegistration(t *testing.T) {
	want := map[string]bool{
		"version": false, "classify": false, "parse": false, "metrics": false,
		"alerts": false, "dashboard": false, "mcp": false, "init": false,
		"tools": false, "completion": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not registered on root", name)
		}
	}
}

func TestRoot_NilPipeline(t *testing.T) {
	_, _, err := runRoot(t, nil, "", "list", "files")
	if err == nil || !strings.Contains(err.Error(), "pipeline not initialized") {
		t.Errorf("err = %v, want pipeline not initialized", err)
	}
}

func TestRoot_OneShotJoinsArgs(t *testing.T) {
	p := &fakePipeline{}
	_, _, err := runRoot(t, p, "", "list", "the", "files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.queries) != 1 || p.queries[0] != "list the files" {
		t.Errorf("queries = %v, want [list the files]", p.queries)
	}
}

func TestRoot_OneShotError(t *testing.T) {
	p := &fakePipeline{errs: map[string]error{"scan it": errors.New("oracle offline")}}
	_, _, err := runRoot(t, p, "", "scan", "it")
	if err == nil {
		t.Fatal("expected error from failed query")
	}
	if !strings.Contains(err.Error(), `running "scan it"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRoot_OneShotExhaustedNotRewrapped(t *testing.T) {
	exhausted := &core.FallbackExhaustedError{Query: "do magic", Retries: 3}
	p := &fakePipeline{errs: map[string]error{"do magic": exhausted}}
	_, _, err := runRoot(t, p, "", "do", "magic")

	var fe *core.FallbackExhaustedError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FallbackExhaustedError, got %v", err)
	}
	if strings.Contains(err.Error(), "running") {
		t.Errorf("exhausted error should not be wrapped: %v", err)
	}
}

func TestRoot_InteractiveExitWords(t *testing.T) {
	for _, word := range []string{"exit", "quit", "sair", "EXIT"} {
		t.Run(word, func(t *testing.T) {
			p := &fakePipeline{}
			out, _, err := runRoot(t, p, "list files\n\n"+word+"\nnever reached\n")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(p.queries) != 1 || p.queries[0] != "list files" {
				t.Errorf("queries = %v, want [list files]", p.queries)
			}
			if strings.Count(out, "fenrir> ") != 3 {
				t.Errorf("expected 3 prompts, got output %q", out)
			}
		})
	}
}

func TestRoot_InteractiveEOF(t *testing.T) {
	p := &fakePipeline{}
	_, _, err := runRoot(t, p, "first\nsecond")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.queries) != 2 || p.queries[1] != "second" {
		t.Errorf("queries = %v, want [first second]", p.queries)
	}
}

func TestRoot_InteractiveContinuesAfterError(t *testing.T) {
	p := &fakePipeline{errs: map[string]error{"bad": errors.New("oracle offline")}}
	_, stderr, err := runRoot(t, p, "bad\ngood\nexit\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.queries) != 2 {
		t.Errorf("queries = %v, want both queries run", p.queries)
	}
	if !strings.Contains(stderr, "Error: running \"bad\": oracle offline") {
		t.Errorf("stderr = %q, want reported error", stderr)
	}
}

func TestRoot_FlagsReachInitializer(t *testing.T) {
	p := &fakePipeline{}
	var got InitOptions
	released := false

	origPipeline, origInit := Pipeline, initializer
	t.Cleanup(func() {
		Pipeline, initializer = origPipeline, origInit
		noExec = false
		configFile = ""
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	Pipeline = nil
	initializer = func(o InitOptions) (func() error, error) {
		got = o
		Pipeline = p
		return func() error { released = true; return nil }, nil
	}

	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--no-exec", "--config", "/tmp/alt.yaml", "show", "date"})

	if err := Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.NoExec {
		t.Error("expected NoExec to reach the initializer")
	}
	if got.ConfigFile != "/tmp/alt.yaml" {
		t.Errorf("ConfigFile = %q, want /tmp/alt.yaml", got.ConfigFile)
	}
	if got.Out == nil || got.In == nil {
		t.Error("expected command streams to reach the initializer")
	}
	if !released {
		t.Error("expected services to be released")
	}
	if len(p.queries) != 1 || p.queries[0] != "show date" {
		t.Errorf("queries = %v, want [show date]", p.queries)
	}
}

func TestRoot_InitializerError(t *testing.T) {
	origInit := initializer
	t.Cleanup(func() {
		initializer = origInit
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	initializer = func(InitOptions) (func() error, error) {
		return nil, errors.New("config validation failed")
	}

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"anything"})
	err := Execute()
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v, want initializer error", err)
	}
}
