package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// EditTarget is one field the operator may replace during enhancement.
type EditTarget interface {
	Label() string
	Prompt() string
	// Apply replaces the field with input. It leaves t untouched on error.
	Apply(t *models.Task, input string) error
}

// EditTargets lists the editable fields in menu order.
func EditTargets() []EditTarget {
	return []EditTarget{
		taskTypeEdit{},
		explanationEdit{},
		commandEdit{},
		targetPathEdit{},
		tagsEdit{},
	}
}

// EditTargetByChoice resolves a 1-based menu choice.
func EditTargetByChoice(choice string) (EditTarget, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil {
		return nil, false
	}
	targets := EditTargets()
	if n < 1 || n > len(targets) {
		return nil, false
	}
	return targets[n-1], true
}

type taskTypeEdit struct{}

func (taskTypeEdit) Label() string  { return "task type" }
func (taskTypeEdit) Prompt() string { return "New task type: " }
func (taskTypeEdit) Apply(t *models.Task, input string) error {
	v := strings.ToLower(strings.TrimSpace(input))
	if v == "" {
		return fmt.Errorf("task type must not be empty")
	}
	t.Type = models.TaskType(v)
	return nil
}

type explanationEdit struct{}

func (explanationEdit) Label() string  { return "explanation" }
func (explanationEdit) Prompt() string { return "New explanation: " }
func (explanationEdit) Apply(t *models.Task, input string) error {
	v := strings.TrimSpace(input)
	if v == "" {
		return fmt.Errorf("explanation must not be empty")
	}
	t.Explanation = v
	return nil
}

// commandEdit re-derives the time segment from the new command. Blank
// input clears the command.
type commandEdit struct{}

func (commandEdit) Label() string  { return "command" }
func (commandEdit) Prompt() string { return "New command (blank to clear): " }
func (commandEdit) Apply(t *models.Task, input string) error {
	t.CommandToRun = optionalCardValue(input)
	Classify(t)
	return nil
}

type targetPathEdit struct{}

func (targetPathEdit) Label() string  { return "target path" }
func (targetPathEdit) Prompt() string { return "New target path or URL (blank to clear): " }
func (targetPathEdit) Apply(t *models.Task, input string) error {
	t.TargetPath = optionalCardValue(input)
	return nil
}

type tagsEdit struct{}

func (tagsEdit) Label() string  { return "tags" }
func (tagsEdit) Prompt() string { return "Tags, comma separated (blank to clear): " }
func (tagsEdit) Apply(t *models.Task, input string) error {
	t.Tags = models.NormalizeTags(input)
	return nil
}
