package observability

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// TaskLogTimeFormat is the timestamp layout of TaskLog record headers.
const TaskLogTimeFormat = "2006-01-02 15:04:05"

// TaskLog is the append-only audit trail of resolved tasks.
type TaskLog interface {
	Record(runID string, task models.Task) error
}

type fileTaskLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileTaskLog creates a TaskLog appending to path. The file is opened
// for each record so several fenrir processes can share it.
func NewFileTaskLog(path string) TaskLog {
	return &fileTaskLog{path: path, now: time.Now}
}

// Record appends one header line and a YAML dump of task in a single write.
func (l *fileTaskLog) Record(runID string, task models.Task) error {
	entry, err := FormatTaskRecord(l.now(), runID, task)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating task log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening task log: %w", err)
	}
	if _, err := f.Write(entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing task log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing task log: %w", err)
	}
	return nil
}

// FormatTaskRecord renders one audit record.
func FormatTaskRecord(at time.Time, runID string, task models.Task) ([]byte, error) {
	body, err := yaml.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshalling task for task log: %w", err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "\n--- [ %s ] (Segment: %s, Retries: %d, Run: %s) ---\n",
		at.Format(TaskLogTimeFormat), models.SegmentLabel(task.TimeSegment), task.RetryCount, runID)
	b.Write(body)
	return b.Bytes(), nil
}
