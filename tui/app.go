// ABOUTME: Top-level Bubble Tea model for following one background generation.
// ABOUTME: Composes the file panel, the event log, and the status bar, and routes messages between them.
package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/sitegen/bgmanager"
)

// FocusTarget indicates which panel currently has keyboard focus.
type FocusTarget int

const (
	FocusFiles FocusTarget = iota
	FocusLog
)

// AppModel follows one project's generation.
type AppModel struct {
	files     FilesPanelModel
	log       LogPanelModel
	statusBar StatusBarModel

	// cancel stops the run when the user quits before it ends.
	cancel func()

	state  bgmanager.State
	focus  FocusTarget
	done   bool
	err    error
	width  int
	height int
}

// NewAppModel creates an AppModel for projectID. cancel may be nil.
func NewAppModel(projectID string, cancel func()) AppModel {
	return AppModel{
		files:     NewFilesPanelModel(),
		log:       NewLogPanelModel(500),
		statusBar: NewStatusBarModel(projectID),
		cancel:    cancel,
		state:     bgmanager.State{ProjectID: projectID},
		focus:     FocusFiles,
	}
}

// Result returns the final state and the run error, if any.
func (m AppModel) Result() (bgmanager.State, error) {
	return m.state, m.err
}

// Done reports whether the run has ended.
func (m AppModel) Done() bool {
	return m.done
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return m.files.Tick()
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case StateMsg:
		return m.handleState(msg.State), nil

	case EventMsg:
		m.log.Append(msg.At, msg.Event)
		return m, nil

	case RunResultMsg:
		return m.handleResult(msg), nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.files, cmd = m.files.Update(msg)
	return m, cmd
}

// handleState applies a manager notification. Notifications for other
// projects are ignored.
func (m AppModel) handleState(s bgmanager.State) AppModel {
	if s.ProjectID != m.state.ProjectID {
		return m
	}
	m.state = s
	m.files.SetState(s)
	m.statusBar.SetState(s)
	if s.Status.Terminal() {
		m.done = true
	}
	return m
}

func (m AppModel) handleResult(msg RunResultMsg) AppModel {
	m = m.handleState(msg.State)
	m.done = true
	m.err = msg.Err
	if m.err == nil && msg.State.Status == bgmanager.StatusFailed {
		m.err = errors.New(msg.State.Error)
	}
	return m
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if !m.done && m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case "tab":
		if m.focus == FocusFiles {
			m.focus = FocusLog
		} else {
			m.focus = FocusFiles
		}
		m.log.SetFocused(m.focus == FocusLog)
		return m, nil
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	return m, cmd
}

// layout sizes the panels: files on the left, the log on the right, and
// the status bar along the bottom.
func (m *AppModel) layout() {
	bodyHeight := max(m.height-1, 3)
	filesWidth := max(m.width*45/100, 20)
	logWidth := max(m.width-filesWidth, 10)

	m.files.SetSize(filesWidth, bodyHeight)
	m.log.SetSize(logWidth, bodyHeight)
	m.statusBar.SetWidth(m.width)
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.files.View(), m.log.View())

	status := m.statusBar.View()
	if m.done {
		if m.err != nil {
			status += " " + FailedStyle.Render(fmt.Sprintf("FAILED: %v", m.err))
		} else {
			status += " " + CompletedStyle.Render("DONE (q to exit)")
		}
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(status)
	return b.String()
}
