package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeExecutor records Exec calls instead of running anything.
type fakeExecutor struct {
	calls  []CLIExecConfig
	result *CLIExecResult
}

func (f *fakeExecutor) Exec(_ context.Context, config CLIExecConfig) (*CLIExecResult, error) {
	f.calls = append(f.calls, config)
	if f.result != nil {
		return f.result, nil
	}
	return &CLIExecResult{}, nil
}

func newTestToolRunner(t *testing.T) (ToolRunner, *fakeExecutor, string) {
	t.Helper()
	root := t.TempDir()
	wordlist := filepath.Join(root, "words.txt")
	if err := os.WriteFile(wordlist, []byte("admin\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &fakeExecutor{}
	r := NewToolRunner(exec, ToolRunnerConfig{
		LogDir:          filepath.Join(root, "fenrir_logs"),
		ReportDir:       filepath.Join(root, "fenrir_reports"),
		DefaultWordlist: wordlist,
		KillOnTimeout:   true,
		Now:             func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return r, exec, root
}

func TestSafeTargetName(t *testing.T) {
	tests := map[string]string{
		"http://10.0.0.5/app/login": "10.0.0.5_app_login",
		"https://example.com/":      "example.com_",
		"localhost":                 "localhost",
		" 192.168.1.1 ":             "192.168.1.1",
		"..":                        "__",
		".":                         "_",
		"http://..":                 "__",
		"../etc/passwd":             ".._etc_passwd",
		`..\..\windows`:             ".._.._windows",
	}
	for in, want := range tests {
		if got := SafeTargetName(in); got != want {
			t.Errorf("SafeTargetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeTargetName_StaysInsideLogDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "logs")
	for _, target := range []string{"..", ".", "../..", "../../tmp", `..\x`, "http://../", "..."} {
		dir := filepath.Join(base, SafeTargetName(target))
		rel, err := filepath.Rel(base, dir)
		if err != nil {
			t.Fatalf("Rel(%q): %v", dir, err)
		}
		if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			t.Errorf("target %q resolves to %q, outside or equal to the log dir", target, dir)
		}
	}
}

func TestToolRunner_Names(t *testing.T) {
	r, _, _ := newTestToolRunner(t)
	got := strings.Join(r.Names(), ",")
	if got != "generate_report,gobuster,nmap,sqlmap" {
		t.Errorf("Names() = %s", got)
	}
	if r.HasTool("hydra") {
		t.Error("HasTool(hydra) = true")
	}
}

func TestToolRunner_Gobuster(t *testing.T) {
	r, exec, root := newTestToolRunner(t)

	run, err := r.Run(context.Background(), ToolGobuster, ToolRequest{Target: "http://10.0.0.5/app", Flags: []string{"-x", ".php"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOut := filepath.Join(root, "fenrir_logs", "10.0.0.5_app", "gobuster_scan.log")
	if run.OutputPath != wantOut {
		t.Errorf("OutputPath = %q, want %q", run.OutputPath, wantOut)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("got %d exec calls", len(exec.calls))
	}
	call := exec.calls[0]
	want := "dir -u http://10.0.0.5/app -w " + filepath.Join(root, "words.txt") + " -x .php -o " + wantOut
	if call.Command != "gobuster" || strings.Join(call.Args, " ") != want {
		t.Errorf("exec = %s %v", call.Command, call.Args)
	}
	if call.Shell {
		t.Error("tools must not run through the shell")
	}
	if call.Timeout != 300*time.Second {
		t.Errorf("Timeout = %s, want 5m", call.Timeout)
	}
	if _, err := os.Stat(filepath.Dir(wantOut)); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}

func TestToolRunner_GobusterMissingWordlist(t *testing.T) {
	r, exec, _ := newTestToolRunner(t)
	_, err := r.Run(context.Background(), ToolGobuster, ToolRequest{Target: "http://x", Wordlist: "/nope/words.txt"})
	if err == nil || !strings.Contains(err.Error(), "/nope/words.txt") {
		t.Fatalf("error = %v, want wordlist not found", err)
	}
	if len(exec.calls) != 0 {
		t.Error("gobuster ran without a wordlist")
	}
}

func TestToolRunner_Nmap(t *testing.T) {
	r, exec, root := newTestToolRunner(t)
	exec.result = &CLIExecResult{ExitCode: 1}

	run, err := r.Run(context.Background(), ToolNmap, ToolRequest{Target: "10.0.0.5", Flags: []string{"-sV"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOut := filepath.Join(root, "fenrir_logs", "10.0.0.5", "nmap_scan.xml")
	if got := strings.Join(exec.calls[0].Args, " "); got != "-sV -oX "+wantOut+" 10.0.0.5" {
		t.Errorf("args = %s", got)
	}
	if run.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", run.ExitCode)
	}
}

func TestToolRunner_Sqlmap(t *testing.T) {
	r, exec, root := newTestToolRunner(t)

	run, err := r.Run(context.Background(), ToolSqlmap, ToolRequest{Target: "http://x/item?id=1", Flags: []string{"--dbs"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantDir := filepath.Join(root, "fenrir_logs", "x_item?id=1", "sqlmap")
	if run.OutputPath != wantDir {
		t.Errorf("OutputPath = %q, want %q", run.OutputPath, wantDir)
	}
	if got := strings.Join(exec.calls[0].Args, " "); got != "--batch -u http://x/item?id=1 --output-dir "+wantDir+" --dbs" {
		t.Errorf("args = %s", got)
	}
}

func TestToolRunner_RequiresTarget(t *testing.T) {
	r, _, _ := newTestToolRunner(t)
	if _, err := r.Run(context.Background(), ToolNmap, ToolRequest{}); err == nil {
		t.Fatal("expected error for missing target")
	}
	if _, err := r.Run(context.Background(), "hydra", ToolRequest{Target: "x"}); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
