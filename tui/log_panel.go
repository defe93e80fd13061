// ABOUTME: Scrollable event log panel built on the bubbles viewport component.
// ABOUTME: Consecutive chunks of one component are folded into a single line with a byte count.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/sitegen/genevent"
)

type logEntry struct {
	at     time.Time
	event  genevent.Event
	chunks int
	bytes  int
}

// LogPanelModel is a scrollable log of generation events.
type LogPanelModel struct {
	entries  []logEntry
	max      int
	viewport viewport.Model
	focused  bool
	width    int
	height   int
}

// NewLogPanelModel creates a log panel keeping at most maxEntries lines.
// If maxEntries is <= 0, it defaults to 200.
func NewLogPanelModel(maxEntries int) LogPanelModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return LogPanelModel{
		entries:  make([]logEntry, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds an event, evicting the oldest line when full.
func (m *LogPanelModel) Append(at time.Time, e genevent.Event) {
	if chunk, ok := e.(genevent.ComponentChunk); ok && len(m.entries) > 0 {
		last := &m.entries[len(m.entries)-1]
		if prev, ok := last.event.(genevent.ComponentChunk); ok && prev.ComponentName == chunk.ComponentName {
			last.chunks++
			last.bytes += len(chunk.Chunk)
			m.syncViewport()
			return
		}
	}

	entry := logEntry{at: at, event: e}
	if chunk, ok := e.(genevent.ComponentChunk); ok {
		entry.chunks, entry.bytes = 1, len(chunk.Chunk)
	}
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, entry)
	m.syncViewport()
}

// Len returns the number of lines in the log.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

// SetFocused sets whether this panel accepts scroll keys.
func (m *LogPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// IsFocused returns whether the panel is focused.
func (m LogPanelModel) IsFocused() bool {
	return m.focused
}

// SetSize sets the available dimensions and updates the viewport.
func (m *LogPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Border takes two lines, the title one more.
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
	m.syncViewport()
}

// Update forwards scroll keys to the viewport while focused.
func (m LogPanelModel) Update(msg tea.Msg) (LogPanelModel, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the log panel.
func (m LogPanelModel) View() string {
	title := "EVENTS"
	if m.focused {
		title = "EVENTS (focused)"
	}

	content := "No events yet"
	if len(m.entries) > 0 {
		content = m.viewport.View()
	}

	return BorderStyle.
		Width(max(m.width-2, 1)).
		Height(max(m.height-2, 1)).
		Render(TitleStyle.Render(title) + "\n" + content)
}

// syncViewport rebuilds the viewport content. It follows new lines unless
// the user has scrolled up.
func (m *LogPanelModel) syncViewport() {
	follow := m.viewport.AtBottom()
	lines := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		lines = append(lines, formatEntry(entry))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

// formatEntry renders one log line.
func formatEntry(entry logEntry) string {
	ts := LogTimestampStyle.Render(entry.at.Format("15:04:05"))
	e := entry.event
	kind := eventStyle(e).Render(string(e.EventType()))

	var detail string
	switch ev := e.(type) {
	case genevent.StageStart:
		detail = string(ev.Stage)
		if ev.TotalFiles != nil {
			detail += fmt.Sprintf(" files=%d", *ev.TotalFiles)
		}
	case genevent.StageComplete:
		detail = string(ev.Stage)
	case genevent.ComponentStart:
		detail = ev.ComponentName
	case genevent.ComponentChunk:
		detail = fmt.Sprintf("%s chunks=%d bytes=%d", ev.ComponentName, entry.chunks, entry.bytes)
	case genevent.ComponentComplete:
		detail = fmt.Sprintf("%s -> %s (%d/%d)", ev.ComponentName, ev.File.Path, ev.CompletedFiles, ev.TotalFiles)
	case genevent.GenerationComplete:
		detail = fmt.Sprintf("files=%d", ev.TotalFiles)
	case genevent.Error:
		detail = fmt.Sprintf("[%s] %s", ev.Stage, ev.Message)
	}
	return strings.Join([]string{ts, kind, detail}, " ")
}

func eventStyle(e genevent.Event) lipgloss.Style {
	switch e.(type) {
	case genevent.ComponentChunk:
		return LogChunkStyle
	case genevent.StageComplete, genevent.ComponentComplete, genevent.GenerationComplete:
		return LogSuccessStyle
	case genevent.Error:
		return LogErrorStyle
	default:
		return LogEventStyle
	}
}
