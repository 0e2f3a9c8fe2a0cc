package core

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

//go:embed templates
var templateFS embed.FS

// InitConfig holds the parameters for initializing a fenrir workspace.
// Empty fields keep their defaults.
type InitConfig struct {
	BasePath      string
	OracleCommand string
	Wordlist      string
	WebhookURL    string
}

// InitResult holds a summary of what was created vs. skipped.
type InitResult struct {
	Created []string
	Skipped []string
}

// WorkspaceInitializer prepares a directory for fenrir: a commented
// configuration file, the tool and report directories and a .gitignore for
// the generated output.
type WorkspaceInitializer interface {
	Init(config InitConfig) (*InitResult, error)
}

type workspaceInitializer struct{}

// NewWorkspaceInitializer creates a new WorkspaceInitializer.
func NewWorkspaceInitializer() WorkspaceInitializer {
	return &workspaceInitializer{}
}

// Init is safe to run on an existing workspace: files and directories that
// already exist are skipped and not overwritten.
func (wi *workspaceInitializer) Init(config InitConfig) (*InitResult, error) {
	result := &InitResult{}

	cfg := DefaultConfig()
	if config.OracleCommand != "" {
		cfg.Oracle.Command = config.OracleCommand
	}
	if config.Wordlist != "" {
		cfg.Tools.Wordlist = config.Wordlist
	}
	cfg.Alerts.WebhookURL = config.WebhookURL

	dirs := []string{
		config.BasePath,
		filepath.Join(config.BasePath, cfg.Logs.ToolDir),
		filepath.Join(config.BasePath, cfg.Logs.ReportDir),
	}
	for _, dir := range dirs {
		created, err := ensureDir(dir)
		if err != nil {
			return nil, fmt.Errorf("initializing workspace: creating directory %s: %w", dir, err)
		}
		if created {
			result.Created = append(result.Created, dir)
		} else {
			result.Skipped = append(result.Skipped, dir)
		}
	}

	files := []struct {
		name     string
		template string
	}{
		{ConfigFileName, "fenrir.yaml.tmpl"},
		{".gitignore", "gitignore.tmpl"},
	}
	for _, f := range files {
		path := filepath.Join(config.BasePath, f.name)
		if err := writeFileIfNotExists(path, func() ([]byte, error) {
			return renderTemplate(f.template, cfg)
		}, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ensureDir creates a directory if it does not exist. Returns true if created.
func ensureDir(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return false, err
	}
	return true, nil
}

// writeFileIfNotExists writes content from contentFn if the file does not exist.
// It records created/skipped in the result.
func writeFileIfNotExists(path string, contentFn func() ([]byte, error), result *InitResult) error {
	if _, err := os.Stat(path); err == nil {
		result.Skipped = append(result.Skipped, path)
		return nil
	}
	content, err := contentFn()
	if err != nil {
		return fmt.Errorf("initializing workspace: generating content for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("initializing workspace: writing %s: %w", path, err)
	}
	result.Created = append(result.Created, path)
	return nil
}

// renderTemplate renders an embedded template with cfg.
func renderTemplate(name string, cfg *models.Config) ([]byte, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("rendering template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
