// ABOUTME: lipgloss styles for the generation view: panels, file states, and log colors.
// ABOUTME: StyleForStatus maps a background-generation status to its display style.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/sitegen/bgmanager"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Status colors
	IdleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Log event colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogEventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogChunkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// StyleForStatus returns the style for a generation status.
func StyleForStatus(status bgmanager.Status) lipgloss.Style {
	switch status {
	case bgmanager.StatusGenerating:
		return RunningStyle
	case bgmanager.StatusComplete:
		return CompletedStyle
	case bgmanager.StatusFailed:
		return FailedStyle
	default:
		return IdleStyle
	}
}
