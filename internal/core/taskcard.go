package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// NotApplicable is the card sentinel for an absent field.
const NotApplicable = "N/A"

const mandatoryKeyCount = 2

// cardField binds a card key to the task field it populates.
type cardField struct {
	Key       string
	Mandatory bool
	// apply stores a trimmed, non-sentinel value and reports whether the
	// key counts as matched.
	apply func(t *models.Task, value string) bool
}

// CardGrammar is the key table for the line-oriented task card. Keys are
// compared case-insensitively; the first colon on a line separates key
// from value so values may contain colons.
var CardGrammar = []cardField{
	{Key: "TASK_TYPE", Mandatory: true, apply: func(t *models.Task, v string) bool {
		if optionalCardValue(v) == nil {
			return false
		}
		t.Type = models.TaskType(strings.ToLower(v))
		return true
	}},
	{Key: "EXPLANATION", Mandatory: true, apply: func(t *models.Task, v string) bool {
		if optionalCardValue(v) == nil {
			return false
		}
		t.Explanation = v
		return true
	}},
	{Key: "COMMAND", apply: func(t *models.Task, v string) bool {
		t.CommandToRun = optionalCardValue(v)
		return true
	}},
	{Key: "FILE", apply: func(t *models.Task, v string) bool {
		t.TargetPath = optionalCardValue(v)
		return true
	}},
	{Key: "APP", apply: func(t *models.Task, v string) bool {
		t.Application = optionalCardValue(v)
		return true
	}},
	{Key: "TAGS", apply: func(t *models.Task, v string) bool {
		if optionalCardValue(v) == nil {
			t.Tags = nil
			return true
		}
		t.Tags = models.NormalizeTags(v)
		return true
	}},
}

// ParseTaskCard parses a reasoning-engine reply into a task. Unknown keys
// and lines without a colon are skipped. Parsing fails with a
// *ProtocolError when no mandatory key was matched, or when the resulting
// task has no explanation. A card carrying only EXPLANATION parses as an
// unknown task.
func ParseTaskCard(reply string) (models.Task, error) {
	task := models.Task{Type: models.TaskUnknown}
	matched := make(map[string]bool, mandatoryKeyCount)

	for _, line := range strings.Split(reply, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = normalizeCardKey(key)
		value = strings.TrimSpace(value)

		field, ok := lookupCardField(key)
		if !ok {
			continue
		}
		if field.apply(&task, value) && field.Mandatory {
			matched[field.Key] = true
		}
	}

	if len(matched) == 0 {
		return models.Task{}, &ProtocolError{Raw: reply}
	}
	if err := task.Validate(); err != nil {
		return models.Task{}, &ProtocolError{Raw: reply, Matched: len(matched)}
	}
	return task, nil
}

// FormatCard renders a task in the card wire format.
func FormatCard(t models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK_TYPE: %s\n", t.Type)
	fmt.Fprintf(&b, "EXPLANATION: %s\n", t.Explanation)
	fmt.Fprintf(&b, "COMMAND: %s\n", cardValue(t.CommandToRun))
	fmt.Fprintf(&b, "FILE: %s\n", cardValue(t.TargetPath))
	fmt.Fprintf(&b, "APP: %s\n", cardValue(t.Application))
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "TAGS: %s\n", strings.Join(t.Tags, ", "))
	}
	return b.String()
}

func lookupCardField(key string) (cardField, bool) {
	for _, f := range CardGrammar {
		if f.Key == key {
			return f, true
		}
	}
	return cardField{}, false
}

// normalizeCardKey tolerates markdown decoration such as "**COMMAND**" or
// "- COMMAND" that text generators like to add.
func normalizeCardKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.Trim(key, "*_`#- ")
	return strings.ToUpper(key)
}

func optionalCardValue(v string) *string {
	if strings.EqualFold(strings.TrimSpace(v), NotApplicable) {
		return nil
	}
	return models.Optional(v)
}

func cardValue(p *string) string {
	if p == nil {
		return NotApplicable
	}
	return *p
}
