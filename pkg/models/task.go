package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskType identifies which handler the dispatcher routes a task to.
// The set is open: unrecognized values are carried through and treated as
// a no-op at dispatch time.
type TaskType string

const (
	TaskExecuteCommand TaskType = "execute_command"
	TaskOpenEditor     TaskType = "open_editor"
	TaskGobuster       TaskType = "gobuster"
	TaskNmap           TaskType = "nmap"
	TaskSqlmap         TaskType = "sqlmap"
	TaskGenerateReport TaskType = "generate_report"
	TaskUnknown        TaskType = "unknown"
)

// TimeSegment buckets a command by how long it is expected to run.
type TimeSegment string

const (
	SegmentQuick  TimeSegment = "Quick"
	SegmentMedium TimeSegment = "Medium"
	SegmentLong   TimeSegment = "Long"
)

// MaxTimeout returns the execution deadline for the segment.
func (s TimeSegment) MaxTimeout() time.Duration {
	switch s {
	case SegmentQuick:
		return 10 * time.Second
	case SegmentLong:
		return 300 * time.Second
	default:
		return 60 * time.Second
	}
}

// SegmentLabel renders an optional segment for logs and prompts.
func SegmentLabel(s *TimeSegment) string {
	if s == nil {
		return "Unclassified"
	}
	return string(*s)
}

// Task is the descriptor that flows through the oracle, enhancement and
// dispatch stages. Optional fields are nil when absent; an absent field is
// never represented by an empty string or the "N/A" sentinel.
type Task struct {
	Type         TaskType     `yaml:"task_type" json:"task_type"`
	Explanation  string       `yaml:"explanation" json:"explanation"`
	CommandToRun *string      `yaml:"command_to_run,omitempty" json:"command_to_run,omitempty"`
	TargetPath   *string      `yaml:"target_path,omitempty" json:"target_path,omitempty"`
	Application  *string      `yaml:"application,omitempty" json:"application,omitempty"`
	Tags         []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
	TimeSegment  *TimeSegment `yaml:"time_segment,omitempty" json:"time_segment,omitempty"`
	RetryCount   int          `yaml:"retry_count" json:"retry_count"`
	IsConfirmed  bool         `yaml:"is_confirmed" json:"is_confirmed"`
}

// NewTask builds a task and rejects descriptors without an explanation.
func NewTask(taskType TaskType, explanation string) (Task, error) {
	t := Task{Type: taskType, Explanation: strings.TrimSpace(explanation)}
	if t.Type == "" {
		t.Type = TaskUnknown
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the invariants every task must satisfy regardless of type.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Explanation) == "" {
		return fmt.Errorf("task explanation must not be empty")
	}
	if t.RetryCount < 0 {
		return fmt.Errorf("retry count must be non-negative, got %d", t.RetryCount)
	}
	if t.Tags != nil && len(t.Tags) == 0 {
		return fmt.Errorf("tags must be absent rather than empty")
	}
	return nil
}

// Clone returns a deep copy so concurrent stages never share optional fields.
func (t Task) Clone() Task {
	c := t
	c.CommandToRun = clonePtr(t.CommandToRun)
	c.TargetPath = clonePtr(t.TargetPath)
	c.Application = clonePtr(t.Application)
	c.TimeSegment = clonePtr(t.TimeSegment)
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return c
}

// Command returns the command and whether one is set.
func (t Task) Command() (string, bool) { return deref(t.CommandToRun) }

// Target returns the target path and whether one is set.
func (t Task) Target() (string, bool) { return deref(t.TargetPath) }

// App returns the application and whether one is set.
func (t Task) App() (string, bool) { return deref(t.Application) }

// Optional returns nil for blank strings and a pointer to the trimmed value otherwise.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeTags trims entries and drops empties. An empty result is nil so
// that tags are only ever present when non-empty.
func NormalizeTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func deref(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}
