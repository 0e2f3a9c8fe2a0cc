package core

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/fenrir/pkg/models"
)

var (
	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	cardKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	cardEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	segmentStyles = map[models.TimeSegment]lipgloss.Style{
		models.SegmentQuick:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		models.SegmentMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		models.SegmentLong:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// RenderTask renders a task as the proposed action shown before confirmation.
func RenderTask(t models.Task) string {
	rows := []string{cardTitleStyle.Render("Proposed action")}
	row := func(key, value string) {
		rows = append(rows, cardKeyStyle.Render(key)+value)
	}
	optional := func(p *string) string {
		if p == nil {
			return cardEmptyStyle.Render(NotApplicable)
		}
		return *p
	}

	row("type", string(t.Type))
	row("why", t.Explanation)
	row("command", optional(t.CommandToRun))
	row("target", optional(t.TargetPath))
	row("app", optional(t.Application))
	if len(t.Tags) > 0 {
		row("tags", strings.Join(t.Tags, ", "))
	}
	if t.TimeSegment != nil {
		seg := *t.TimeSegment
		row("segment", segmentStyles[seg].Render(fmt.Sprintf("%s (max %s)", seg, seg.MaxTimeout())))
	}
	if t.RetryCount > 0 {
		row("retries", fmt.Sprintf("%d", t.RetryCount))
	}
	return cardStyle.Render(strings.Join(rows, "\n"))
}
