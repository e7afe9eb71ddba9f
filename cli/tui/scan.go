package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spotlens-io/spotlens/pipeline"
)

// ScanProgressMsg carries one progress message from a running scan.
type ScanProgressMsg string

// ScanDoneMsg signals scan completion and carries the final result.
type ScanDoneMsg struct {
	Scan *pipeline.ScanResult
}

// ScanModel is a Bubble Tea model for a live scan.
type ScanModel struct {
	spinner  spinner.Model
	total    int
	seen     int
	message  string
	scan     *pipeline.ScanResult
	quitting bool
}

// NewScanModel creates a scan model expecting total tile dispatches.
func NewScanModel(total int) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return ScanModel{
		spinner: sp,
		total:   total,
		message: "Preparing scan...",
	}
}

// Init implements tea.Model.
func (m ScanModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ScanProgressMsg:
		m.message = string(msg)
		m.seen++
		return m, nil

	case ScanDoneMsg:
		m.scan = msg.Scan
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m ScanModel) View() string {
	if m.quitting {
		return ""
	}
	if m.scan != nil {
		return renderScanResult(m.scan)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scanning"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), ValueStyle.Render(m.message)))
	if m.total > 0 {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render(fmt.Sprintf("%d/%d parts dispatched", m.seen, m.total)))
	}
	return b.String()
}

// renderScanResult renders the final scan summary.
func renderScanResult(scan *pipeline.ScanResult) string {
	res := scan.Result

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scan Complete"))
	b.WriteString("\n\n")

	write := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), value))
	}

	write("Scan ID", ValueStyle.Render(scan.Meta.ScanID))
	write("Status", StatusStyle(res.Status).Render(string(res.Status)))
	if res.Query != "" {
		write("Query", ValueStyle.Render(res.Query))
	}
	if res.Confidence > 0 {
		write("Confidence", ValueStyle.Render(fmt.Sprintf("%.2f", res.Confidence)))
	}
	if res.Error != "" {
		write("Error", ErrorStyle.Render(res.Error))
	}
	if res.Message != "" {
		write("Message", ValueStyle.Render(res.Message))
	}
	write("Duration", ValueStyle.Render(scan.Duration.String()))

	if len(res.AggregatedItems) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Candidates"))
		b.WriteString("\n")
		for i, item := range res.AggregatedItems {
			b.WriteString(fmt.Sprintf("%2d. %s %s\n",
				i+1,
				ScoreStyle.Render(fmt.Sprintf("[%d]", item.Score)),
				ValueStyle.Render(item.Title)))
			if item.StoreURL != "" {
				b.WriteString("    " + HelpStyle.Render(item.StoreURL) + "\n")
			}
		}
	}

	return BoxStyle.Render(b.String())
}

// RunScanTUI executes a scan while displaying live progress.
//
// exec runs the scan with the given progress sink and must return even on
// failure (the pipeline resolves failures into the result envelope). The
// returned result is the one exec produced.
func RunScanTUI(total int, exec func(onProgress pipeline.ProgressFunc) *pipeline.ScanResult) (*pipeline.ScanResult, error) {
	p := tea.NewProgram(NewScanModel(total))

	done := make(chan *pipeline.ScanResult, 1)
	go func() {
		scan := exec(func(message string) {
			p.Send(ScanProgressMsg(message))
		})
		done <- scan
		p.Send(ScanDoneMsg{Scan: scan})
	}()

	if _, err := p.Run(); err != nil {
		return nil, err
	}
	return <-done, nil
}
