package core

import (
	"strings"
	"unicode"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// FallbackPrefix marks explanations synthesized by the keyword rules rather
// than the reasoning engine.
const FallbackPrefix = "[fallback] "

// DefaultBuildCommand is used by the build rule when none is configured.
const DefaultBuildCommand = "go build ./..."

// FallbackRule maps query keywords to a synthesized task.
type FallbackRule struct {
	Name        string
	Type        models.TaskType
	Command     string
	Explanation string
	match       func(q fallbackQuery) bool
}

// Matches reports whether the rule applies to the query.
func (r FallbackRule) Matches(query string) bool {
	return r.match(newFallbackQuery(query))
}

// Task builds the synthesized task. The returned task is unconfirmed and
// classified from its command when it has one.
func (r FallbackRule) Task(retries int) models.Task {
	t := models.Task{
		Type:         r.Type,
		Explanation:  FallbackPrefix + r.Explanation,
		CommandToRun: models.Optional(r.Command),
		RetryCount:   retries,
	}
	Classify(&t)
	return t
}

var runCommands = []struct {
	tool    string
	command string
}{
	{"go", "go run ."},
	{"cargo", "cargo run"},
	{"npm", "npm start"},
	{"make", "make run"},
}

var sourceExtensions = []string{
	".go", ".rs", ".py", ".js", ".ts", ".tsx", ".jsx", ".java", ".c", ".h",
	".cpp", ".rb", ".php", ".sh", ".yaml", ".yml", ".json", ".toml", ".md", ".html", ".css",
}

// FallbackRules returns the ordered keyword rules. The first match wins.
func FallbackRules(buildCommand string) []FallbackRule {
	if strings.TrimSpace(buildCommand) == "" {
		buildCommand = DefaultBuildCommand
	}
	rules := []FallbackRule{
		{
			Name: "list", Type: models.TaskExecuteCommand, Command: "ls -lah",
			Explanation: "listing the current directory",
			match:       anyKeyword("list", "ls"),
		},
		{
			Name: "scan", Type: models.TaskExecuteCommand, Command: "nmap -sV localhost",
			Explanation: "running a service version scan against localhost",
			match:       anyKeyword("scan", "nmap"),
		},
		{
			Name: "sqlmap", Type: models.TaskExecuteCommand, Command: "sqlmap --wizard",
			Explanation: "starting the sqlmap wizard",
			match:       anyKeyword("sqlmap", "sql injection"),
		},
		{
			Name: "gobuster", Type: models.TaskExecuteCommand, Command: "gobuster dir -u http://localhost",
			Explanation: "brute forcing directories on localhost",
			match:       anyKeyword("gobuster", "brute force"),
		},
		{
			Name: "discover", Type: models.TaskGobuster,
			Explanation: "discovering content on a target; a target is required before running",
			match:       anyKeyword("find", "locate", "discover", "search", "enumerate"),
		},
		{
			Name: "open", Type: models.TaskOpenEditor,
			Explanation: "opening a source file in an editor",
			match: func(q fallbackQuery) bool {
				return anyKeyword("open", "edit")(q) && q.hasSourceFile()
			},
		},
		{
			Name: "build", Type: models.TaskExecuteCommand, Command: buildCommand,
			Explanation: "building the project",
			match:       anyKeyword("compile", "build"),
		},
	}
	for _, rc := range runCommands {
		rules = append(rules, FallbackRule{
			Name: "run-" + rc.tool, Type: models.TaskExecuteCommand, Command: rc.command,
			Explanation: "running the project with " + rc.tool,
			match: func(q fallbackQuery) bool {
				return q.hasKeyword("run") && q.hasKeyword(rc.tool)
			},
		})
	}
	rules = append(rules, FallbackRule{
		Name: "help", Type: models.TaskExecuteCommand, Command: "fenrir --help",
		Explanation: "showing fenrir usage",
		match:       anyKeyword("help"),
	})
	return rules
}

// MatchFallback applies the rules in order and returns the first match.
func MatchFallback(rules []FallbackRule, query string, retries int) (models.Task, string, bool) {
	q := newFallbackQuery(query)
	for _, r := range rules {
		if r.match(q) {
			return r.Task(retries), r.Name, true
		}
	}
	return models.Task{}, "", false
}

type fallbackQuery struct {
	text  string
	words map[string]bool
}

func newFallbackQuery(query string) fallbackQuery {
	text := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-'
	}) {
		words[strings.Trim(w, ".-")] = true
		words[w] = true
	}
	return fallbackQuery{text: text, words: words}
}

// hasKeyword matches short keywords as whole words so that "ls" does not
// fire on "tools" and "go" does not fire on "google".
func (q fallbackQuery) hasKeyword(kw string) bool {
	if len(kw) <= 3 {
		return q.words[kw]
	}
	return strings.Contains(q.text, kw)
}

func (q fallbackQuery) hasSourceFile() bool {
	for w := range q.words {
		for _, ext := range sourceExtensions {
			if strings.HasSuffix(w, ext) && len(w) > len(ext) {
				return true
			}
		}
	}
	return false
}

func anyKeyword(kws ...string) func(q fallbackQuery) bool {
	return func(q fallbackQuery) bool {
		for _, kw := range kws {
			if q.hasKeyword(kw) {
				return true
			}
		}
		return false
	}
}
