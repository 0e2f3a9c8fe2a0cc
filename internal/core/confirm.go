package core

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Response is a normalized operator answer to a confirmation prompt.
type Response int

const (
	ResponseInvalid Response = iota
	ResponseAffirm
	ResponseReject
	ResponseEdit
)

func (r Response) String() string {
	switch r {
	case ResponseAffirm:
		return "affirm"
	case ResponseReject:
		return "reject"
	case ResponseEdit:
		return "edit"
	default:
		return "invalid"
	}
}

// NormalizeResponse maps raw operator input to a Response.
func NormalizeResponse(input string) Response {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return ResponseAffirm
	case "n", "no":
		return ResponseReject
	case "edit":
		return ResponseEdit
	default:
		return ResponseInvalid
	}
}

// ConfirmationController asks the operator questions one line at a time.
type ConfirmationController interface {
	// Confirm prints prompt and normalizes the answer.
	Confirm(ctx context.Context, prompt string) (Response, error)
	// Ask prints prompt and returns the trimmed answer.
	Ask(ctx context.Context, prompt string) (string, error)
}

type confirmationController struct {
	in  LineSource
	out io.Writer
}

// NewConfirmationController creates a ConfirmationController reading from
// in and writing prompts to out.
func NewConfirmationController(in LineSource, out io.Writer) ConfirmationController {
	return &confirmationController{in: in, out: out}
}

func (c *confirmationController) Confirm(ctx context.Context, prompt string) (Response, error) {
	line, err := c.Ask(ctx, prompt)
	if err != nil {
		return ResponseInvalid, err
	}
	return NormalizeResponse(line), nil
}

func (c *confirmationController) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
