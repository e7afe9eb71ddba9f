// Package tui provides Bubble Tea components for the spotlens CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI uses the same data payloads as non-TUI rendering
//   - No TUI-exclusive data allowed
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/spotlens-io/spotlens/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// ScoreStyle for candidate scores.
	ScoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// StatusStyle returns a style based on the scan status.
func StatusStyle(status types.ScanStatus) lipgloss.Style {
	switch status {
	case types.ScanStatusOK:
		return SuccessStyle
	case types.ScanStatusNoResults:
		return WarningStyle
	case types.ScanStatusError:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// TileStatusStyle returns a style based on a tile status.
func TileStatusStyle(status types.TileStatus) lipgloss.Style {
	switch status {
	case types.TileStatusOK:
		return SuccessStyle
	case types.TileStatusNoResults:
		return WarningStyle
	case types.TileStatusError:
		return ErrorStyle
	default:
		return ValueStyle
	}
}
