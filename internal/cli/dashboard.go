package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/fenrir/internal/observability"
)

// Dashboard panel indices.
const (
	panelPipeline = iota
	panelOutcomes
	panelAlerts
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	loading bool
	err     error
}

type metricsSnapshot struct {
	runs         int
	resolved     int
	fallbacks    int
	fallbackRate float64
	exhausted    int
	confirmed    int
	rejected     int
	unconfirmed  int
	dispatch     map[string]int
	eventCount   int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	err     error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	statusSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusTimedOut  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusSkipped   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelPipeline,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" fenrir dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	pipelinePanel := m.renderPipelinePanel()
	outcomesPanel := m.renderOutcomesPanel()
	alertsPanel := m.renderAlertsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		pipelinePanel = m.applyPanelStyle(panelPipeline, pipelinePanel, colWidth-4)
		outcomesPanel = m.applyPanelStyle(panelOutcomes, outcomesPanel, colWidth-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, pipelinePanel, outcomesPanel, alertsPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		pipelinePanel = m.applyPanelStyle(panelPipeline, pipelinePanel, panelWidth)
		outcomesPanel = m.applyPanelStyle(panelOutcomes, outcomesPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, pipelinePanel, outcomesPanel, alertsPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderPipelinePanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Pipeline (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Runs", md.runs},
		{"Oracle", md.resolved},
		{"Fallback", md.fallbacks},
		{"Exhausted", md.exhausted},
	}
	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}
	b.WriteString(fmt.Sprintf("\n  %-14s %.0f%%", "Fallback rate", md.fallbackRate))

	return b.String()
}

func (m dashboardModel) renderOutcomesPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Outcomes"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Confirmed", md.confirmed))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Rejected", md.rejected))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Unconfirmed", md.unconfirmed))

	if len(md.dispatch) == 0 {
		b.WriteString("\n  Nothing dispatched.")
		return b.String()
	}

	b.WriteString("\n")
	order := []string{"succeeded", "failed", "timed_out", "aborted", "noop", "skipped", "refused", "error"}
	for _, status := range order {
		count, ok := md.dispatch[status]
		if !ok || count == 0 {
			continue
		}
		label := fmt.Sprintf("  %-14s %d", status, count)
		b.WriteString(styleForStatus(status).Render(label))
		b.WriteString("\n")
	}

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForStatus(status string) lipgloss.Style {
	switch status {
	case "succeeded":
		return statusSucceeded
	case "failed", "error", "refused":
		return statusFailed
	case "timed_out":
		return statusTimedOut
	case "aborted", "noop", "skipped":
		return statusSkipped
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func snapshotMetrics(m *observability.Metrics) *metricsSnapshot {
	return &metricsSnapshot{
		runs:         m.Runs,
		resolved:     m.Resolved,
		fallbacks:    m.Fallbacks,
		fallbackRate: m.FallbackRate(),
		exhausted:    m.Exhausted,
		confirmed:    m.Confirmed,
		rejected:     m.Rejected,
		unconfirmed:  m.Unconfirmed,
		dispatch:     m.DispatchByState,
		eventCount:   m.EventCount,
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -7)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = snapshotMetrics(metrics)
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for pipeline metrics and alerts",
	Long: `Launch an interactive terminal dashboard showing pipeline activity,
task outcomes and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		release, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer release()

		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (no event log configured)")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
