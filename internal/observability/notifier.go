package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(alerts []Alert) error
}

// slackNotifier posts alerts to a Slack incoming webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that posts alerts to a Slack
// incoming webhook.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts alerts to the webhook. An empty slice sends nothing. Any
// non-2xx response is an error.
func (s *slackNotifier) Notify(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildSlackMessage(alerts))
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildSlackMessage lays out one section per alert: the condition and
// message, then the observed value against its threshold, the window and
// the event counts behind it.
func buildSlackMessage(alerts []Alert) slackMessage {
	summary := fmt.Sprintf("fenrir: %d pipeline alert(s)", len(alerts))
	if w := alerts[0].Window; w > 0 {
		summary += " in the last " + formatWindow(w)
	}

	blocks := []slackBlock{{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: summary},
	}}
	for i, a := range alerts {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		blocks = append(blocks,
			slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("%s *%s* `%s`\n%s",
					severityEmoji(a.Severity), strings.ToUpper(string(a.Severity)), a.Condition, a.Message)},
				Fields: alertFields(a),
			},
			slackBlock{
				Type:     "context",
				Elements: []slackText{{Type: "mrkdwn", Text: "Triggered " + a.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")}},
			},
		)
	}
	return slackMessage{Text: summary, Blocks: blocks}
}

// alertFields renders the evidence of one alert as Slack section fields.
// Counts follow in key order.
func alertFields(a Alert) []slackText {
	field := func(label, value string) slackText {
		return slackText{Type: "mrkdwn", Text: "*" + label + "*\n" + value}
	}

	fields := []slackText{
		field("Observed", formatAlertValue(a.Condition, a.Observed)),
		field("Threshold", thresholdText(a)),
	}
	if a.Window > 0 {
		fields = append(fields, field("Window", formatWindow(a.Window)))
	}

	keys := make([]string, 0, len(a.Counts))
	for k := range a.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, field(strings.ReplaceAll(k, "_", " "), strconv.Itoa(a.Counts[k])))
	}
	return fields
}

func thresholdText(a Alert) string {
	switch a.Condition {
	case "tasks_unconfirmed":
		return "more than " + formatAlertValue(a.Condition, a.Threshold) + " (confirmed)"
	default:
		return ">= " + formatAlertValue(a.Condition, a.Threshold)
	}
}

func formatAlertValue(condition string, v float64) string {
	if condition == "fallback_rate_high" {
		return fmt.Sprintf("%.0f%%", v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatWindow prints windows the way --since takes them: "7d", "24h",
// and a Go duration for anything finer.
func formatWindow(d time.Duration) string {
	day := 24 * time.Hour
	switch {
	case d >= 2*day && d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	default:
		return d.String()
	}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "\u2753"
	}
}
