package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spotlens-io/spotlens/pipeline"
)

// ReportModel is a Bubble Tea model for viewing a saved scan report.
type ReportModel struct {
	report   *pipeline.ScanReport
	width    int
	height   int
	quitting bool
}

// NewReportModel creates a report viewer model.
func NewReportModel(report *pipeline.ScanReport) ReportModel {
	return ReportModel{report: report}
}

// Init implements tea.Model.
func (m ReportModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m ReportModel) View() string {
	if m.quitting {
		return ""
	}

	content := m.renderReport()
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m ReportModel) renderReport() string {
	rep := m.report

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Scan Report"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Scan ID", rep.ScanID},
		{"Grid", fmt.Sprintf("%d×%d", rep.GridSize, rep.GridSize)},
		{"Status", string(rep.Status)},
		{"Duration", fmt.Sprintf("%dms", rep.DurationMs)},
		{"Version", rep.Version},
	}
	if rep.Source != "" {
		rows = append(rows, []string{"Source", rep.Source})
	}
	if rep.Query != "" {
		rows = append(rows, []string{"Query", rep.Query})
	}
	if rep.Confidence > 0 {
		rows = append(rows, []string{"Confidence", fmt.Sprintf("%.2f", rep.Confidence)})
	}
	if rep.Error != "" {
		rows = append(rows, []string{"Error", rep.Error})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "Status" {
			value = StatusStyle(rep.Status).Render(value)
		} else if row[0] == "Error" {
			value = ErrorStyle.Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(rep.Items) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Candidates"))
		b.WriteString("\n")
		for i, item := range rep.Items {
			b.WriteString(fmt.Sprintf("%2d. %s %s\n",
				i+1,
				ScoreStyle.Render(fmt.Sprintf("[%d]", item.Score)),
				ValueStyle.Render(item.Title)))
		}
	}

	if len(rep.Tiles) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Tiles"))
		b.WriteString("\n")
		for _, tile := range rep.Tiles {
			line := fmt.Sprintf("tile %d: %s (%d items)",
				tile.TileIndex,
				TileStatusStyle(tile.Status).Render(string(tile.Status)),
				tile.Items)
			if tile.Error != "" {
				line += " " + ErrorStyle.Render(tile.Error)
			}
			b.WriteString(line + "\n")
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunReportTUI runs the report viewer TUI.
func RunReportTUI(report *pipeline.ScanReport) error {
	p := tea.NewProgram(NewReportModel(report), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderReportStatic renders a report without the full TUI (for fallback).
func RenderReportStatic(report *pipeline.ScanReport) string {
	model := NewReportModel(report)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
