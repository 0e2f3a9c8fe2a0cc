package integration

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// ToolVersion is the version an external tool reports about itself.
// Patch is zero for tools that print only major.minor.
type ToolVersion struct {
	Major int
	Minor int
	Patch int
}

// String returns the version in semver format (e.g., "7.94.0").
func (v ToolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v ToolVersion) Compare(other ToolVersion) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if d[0] < d[1] {
			return -1
		}
		if d[0] > d[1] {
			return 1
		}
	}
	return 0
}

// ToolStatus is one row of a tool inventory. Err is set when the tool could
// not be run or its output carried no version.
type ToolStatus struct {
	Name    string
	Version *ToolVersion
	Err     error
}

// VersionChecker detects the versions of the external programs fenrir
// drives: the reasoning engine CLI and the scanning tools.
type VersionChecker interface {
	// DetectVersion runs the tool's version command and parses the output.
	DetectVersion(ctx context.Context, name string) (*ToolVersion, error)
	// CheckMinimumVersion returns an error if the tool is older than min.
	CheckMinimumVersion(ctx context.Context, name string, min ToolVersion) error
	// Inventory detects every named tool in order.
	Inventory(ctx context.Context, names []string) []ToolStatus
}

// versionArgs holds the arguments that make a tool print its version.
// Tools not listed get --version.
var versionArgs = map[string][]string{
	ToolGobuster: {"version"},
}

type versionChecker struct {
	executor CLIExecutor

	mu    sync.Mutex
	cache map[string]*ToolVersion
}

// NewVersionChecker creates a VersionChecker that runs tools through executor.
func NewVersionChecker(executor CLIExecutor) VersionChecker {
	return &versionChecker{executor: executor, cache: make(map[string]*ToolVersion)}
}

// versionPattern matches the first dotted version in a tool's output, such
// as "Nmap version 7.94 ( https://nmap.org )" or "1.8.2#stable".
var versionPattern = regexp.MustCompile(`v?(\d+)\.(\d+)(?:\.(\d+))?`)

// parseVersionString extracts the first version number from s.
func parseVersionString(s string) (*ToolVersion, error) {
	matches := versionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, fmt.Errorf("no version in %q: expected MAJOR.MINOR[.PATCH]", strings.TrimSpace(s))
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch := 0
	if matches[3] != "" {
		patch, _ = strconv.Atoi(matches[3])
	}
	return &ToolVersion{Major: major, Minor: minor, Patch: patch}, nil
}

func (c *versionChecker) DetectVersion(ctx context.Context, name string) (*ToolVersion, error) {
	c.mu.Lock()
	if v, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	args, ok := versionArgs[name]
	if !ok {
		args = []string{"--version"}
	}
	res, err := c.executor.Exec(ctx, CLIExecConfig{
		Command: name,
		Args:    args,
		Timeout: models.SegmentQuick.MaxTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("detecting %s version: %w", name, err)
	}
	if res.TimedOut {
		return nil, fmt.Errorf("detecting %s version: timed out after %s", name, models.SegmentQuick.MaxTimeout())
	}

	// Some tools print their banner on stderr.
	version, err := parseVersionString(res.Stdout + "\n" + res.Stderr)
	if err != nil {
		return nil, fmt.Errorf("parsing %s version: %w", name, err)
	}

	c.mu.Lock()
	c.cache[name] = version
	c.mu.Unlock()
	return version, nil
}

func (c *versionChecker) CheckMinimumVersion(ctx context.Context, name string, min ToolVersion) error {
	detected, err := c.DetectVersion(ctx, name)
	if err != nil {
		return err
	}
	if detected.Compare(min) < 0 {
		return fmt.Errorf("%s version %s is less than required minimum %s", name, detected, min)
	}
	return nil
}

func (c *versionChecker) Inventory(ctx context.Context, names []string) []ToolStatus {
	out := make([]ToolStatus, 0, len(names))
	for _, name := range names {
		v, err := c.DetectVersion(ctx, name)
		out = append(out, ToolStatus{Name: name, Version: v, Err: err})
	}
	return out
}
