// ABOUTME: File list panel: finished files with their type and section, and a spinner for the one in flight.
// ABOUTME: Rebuilt from each manager state, so it never drifts from the run it shows.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/persist"
)

// FilesPanelModel lists the files of a run.
type FilesPanelModel struct {
	state    bgmanager.State
	spinner  spinner.Model
	progress progress.Model
	width    int
	height   int
}

// NewFilesPanelModel creates an empty file panel.
func NewFilesPanelModel() FilesPanelModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = RunningStyle

	return FilesPanelModel{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Tick starts the spinner.
func (m FilesPanelModel) Tick() tea.Cmd {
	return m.spinner.Tick
}

// SetState replaces the panel's view of the run.
func (m *FilesPanelModel) SetState(s bgmanager.State) {
	m.state = s
}

// SetSize sets the available dimensions.
func (m *FilesPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.progress.Width = max(w-14, 10)
}

// Update advances the spinner while the run is generating.
func (m FilesPanelModel) Update(msg tea.Msg) (FilesPanelModel, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return m, nil
	}
	if m.state.Status.Terminal() {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// Lines returns the rendered file rows without the panel frame.
func (m FilesPanelModel) Lines() []string {
	lines := make([]string, 0, len(m.state.Files)+1)
	for _, f := range m.state.Files {
		label := persist.FileType(f.Path)
		if section := persist.SectionType(f.Path); section != "" {
			label += "/" + section
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			CompletedStyle.Render("✓"), f.Path, DimStyle.Render("("+label+")")))
	}
	switch {
	case m.state.CurrentComponent != "":
		lines = append(lines, fmt.Sprintf("%s %s", m.spinner.View(), RunningStyle.Render(m.state.CurrentComponent)))
	case m.state.Status == bgmanager.StatusFailed:
		lines = append(lines, FailedStyle.Render("✗ "+m.state.Error))
	}
	return lines
}

// View renders the panel with a progress bar under the title.
func (m FilesPanelModel) View() string {
	status := StyleForStatus(m.state.Status).Render(string(m.state.Status))
	if m.state.Status == "" {
		status = IdleStyle.Render(string(bgmanager.StatusIdle))
	}
	header := TitleStyle.Render("FILES") + " " + status
	bar := m.progress.ViewAs(m.state.Progress()) + fmt.Sprintf(" %3.0f%%", m.state.Progress()*100)

	lines := m.Lines()
	// Border, title and progress bar take four lines; keep the newest rows.
	if room := m.height - 4; room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	body := strings.Join(lines, "\n")
	if body == "" {
		body = DimStyle.Render("Waiting for the first file...")
	}

	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, bar, body))
}
