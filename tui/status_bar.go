// ABOUTME: Single-line status bar for the bottom of the generation view.
// ABOUTME: Shows the project, elapsed time, stage, file progress, and the component in flight.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/sitegen/bgmanager"
)

// StatusBarModel displays generation status in a single line.
type StatusBarModel struct {
	projectID string
	state     bgmanager.State
	now       func() time.Time
	width     int
}

// NewStatusBarModel creates a StatusBarModel for projectID.
func NewStatusBarModel(projectID string) StatusBarModel {
	return StatusBarModel{projectID: projectID, now: time.Now}
}

// SetState records the latest manager state.
func (m *StatusBarModel) SetState(s bgmanager.State) {
	m.state = s
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed is measured from the run's start until it completed, or until
// now while it is still running.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.state.StartedAt.IsZero() {
		return 0
	}
	end := m.now()
	if m.state.CompletedAt != nil {
		end = *m.state.CompletedAt
	}
	if end.Before(m.state.StartedAt) {
		return 0
	}
	return end.Sub(m.state.StartedAt)
}

// formatElapsed renders "12s" under a minute and "2m30s" above.
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	stage := string(m.state.Stage)
	if stage == "" {
		stage = "waiting"
	}
	active := m.state.CurrentComponent
	if active == "" {
		active = "-"
	}

	content := fmt.Sprintf("Project: %s | Elapsed: %s | Stage: %s | %d/%d files | Active: %s",
		m.projectID, formatElapsed(m.Elapsed()), stage, m.state.CompletedFiles, m.state.TotalFiles, active)

	style := StatusBarStyle.Width(m.width)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, style.Render(content))
}
