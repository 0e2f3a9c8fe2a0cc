package core

import (
	"path"
	"strings"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

// quickPrimitives are commands that list, print or read and return at once.
var quickPrimitives = map[string]bool{
	"ls": true, "ll": true, "dir": true, "pwd": true, "echo": true, "printf": true,
	"cat": true, "head": true, "tail": true, "whoami": true, "id": true, "date": true,
	"uname": true, "hostname": true, "which": true, "type": true, "stat": true, "wc": true,
	"env": true, "printenv": true, "file": true,
}

// quickFlags are version/help flags that make any command short-lived.
var quickFlags = map[string]bool{
	"--version": true, "-version": true, "--help": true, "-h": true, "-help": true,
}

// longTools scan, fuzz or brute-force and routinely run for minutes.
var longTools = map[string]bool{
	"nmap": true, "masscan": true, "rustscan": true, "gobuster": true, "dirb": true,
	"dirbuster": true, "feroxbuster": true, "ffuf": true, "wfuzz": true, "sqlmap": true,
	"nikto": true, "hydra": true, "medusa": true, "john": true, "hashcat": true,
	"nuclei": true, "wpscan": true, "enum4linux": true, "amass": true, "aircrack-ng": true,
}

// ClassifyCommand buckets a command string. Long beats Quick: a scanning
// tool anywhere in the command classifies as Long even when a version or
// help flag is also present. A listing/print/read primitive as the first
// word, or a version/help flag, classifies as Quick. Everything else is
// Medium.
func ClassifyCommand(command string) models.TimeSegment {
	tokens := commandTokens(command)
	if len(tokens) == 0 {
		return models.SegmentMedium
	}

	for _, tok := range tokens {
		if longTools[path.Base(tok)] {
			return models.SegmentLong
		}
	}

	if quickPrimitives[path.Base(tokens[0])] {
		return models.SegmentQuick
	}
	for _, tok := range tokens {
		if quickFlags[tok] {
			return models.SegmentQuick
		}
	}
	return models.SegmentMedium
}

// Classify sets the task's time segment from its command. Tasks without a
// command are left unclassified.
func Classify(t *models.Task) {
	cmd, ok := t.Command()
	if !ok {
		t.TimeSegment = nil
		return
	}
	seg := ClassifyCommand(cmd)
	t.TimeSegment = &seg
}

// commandTokens lowercases and splits a command on whitespace and shell
// operators, dropping quotes and a leading sudo.
func commandTokens(command string) []string {
	fields := strings.FieldsFunc(strings.ToLower(command), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '|', ';', '&', '(', ')':
			return true
		}
		return false
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	for len(tokens) > 0 && (tokens[0] == "sudo" || tokens[0] == "time" || tokens[0] == "nohup") {
		tokens = tokens[1:]
	}
	return tokens
}
