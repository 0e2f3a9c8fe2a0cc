package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// genCardValue generates a value that contains no newline and is not blank.
func genCardValue(t *rapid.T, label string) string {
	return rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ./:=_-]{0,30}`).Draw(t, label)
}

// genNoiseLine generates a line that is either unknown or malformed.
func genNoiseLine(t *rapid.T, label string) string {
	return rapid.SampledFrom([]string{
		"",
		"```",
		"Here is the card",
		"MOOD: curious",
		"NOTE: value: with: colons",
		"TASKTYPE execute_command",
	}).Draw(t, label)
}

// Feature: fenrir, Property 1: Cards with both mandatory keys always parse
func TestProperty_CardsWithMandatoryKeysParse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		taskType := rapid.SampledFrom([]string{"execute_command", "open_editor", "gobuster", "unknown"}).Draw(t, "type")
		explanation := genCardValue(t, "explanation")

		var lines []string
		for i := range rapid.IntRange(0, 4).Draw(t, "noise") {
			lines = append(lines, genNoiseLine(t, fmt.Sprintf("noise%d", i)))
		}
		lines = append(lines, "TASK_TYPE: "+taskType, "EXPLANATION: "+explanation)
		order := rapid.Permutation(lines).Draw(t, "order")

		task, err := ParseTaskCard(strings.Join(order, "\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(task.Type) != taskType {
			t.Fatalf("Type = %q, want %q", task.Type, taskType)
		}
		if task.Explanation != strings.TrimSpace(explanation) {
			t.Fatalf("Explanation = %q, want %q", task.Explanation, explanation)
		}
	})
}

// Feature: fenrir, Property 2: N/A never reaches a task field
func TestProperty_NotApplicableIsAbsent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sentinel := rapid.SampledFrom([]string{"N/A", "n/a", "N/a", " N/A "}).Draw(t, "sentinel")
		key := rapid.SampledFrom([]string{"COMMAND", "FILE", "APP", "TAGS"}).Draw(t, "key")

		reply := fmt.Sprintf("TASK_TYPE: execute_command\nEXPLANATION: something\n%s:%s", key, sentinel)
		task, err := ParseTaskCard(reply)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.CommandToRun != nil || task.TargetPath != nil || task.Application != nil || task.Tags != nil {
			t.Fatalf("%s: %q produced a stored field: %+v", key, sentinel, task)
		}
	})
}

// Feature: fenrir, Property 3: Replies without mandatory keys fail with the raw text
func TestProperty_MissingMandatoryKeysFail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var lines []string
		for i := range rapid.IntRange(0, 6).Draw(t, "lines") {
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("kind%d", i)) {
			case 0:
				lines = append(lines, genNoiseLine(t, fmt.Sprintf("noise%d", i)))
			case 1:
				lines = append(lines, "COMMAND: "+genCardValue(t, fmt.Sprintf("cmd%d", i)))
			default:
				lines = append(lines, "FILE: "+genCardValue(t, fmt.Sprintf("file%d", i)))
			}
		}
		reply := strings.Join(lines, "\n")

		_, err := ParseTaskCard(reply)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, want *ProtocolError", err)
		}
		if pe.Raw != reply {
			t.Fatalf("Raw = %q, want %q", pe.Raw, reply)
		}
	})
}
