// ABOUTME: Tests for AppModel message routing, key handling, and rendering.
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/genevent"
)

func sized(t *testing.T, m AppModel) AppModel {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(AppModel)
}

func update(t *testing.T, m AppModel, msg tea.Msg) AppModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(AppModel)
}

func generatingState() bgmanager.State {
	return bgmanager.State{
		ProjectID:        "p1",
		Status:           bgmanager.StatusGenerating,
		Stage:            genevent.StageComponents,
		TotalFiles:       2,
		CompletedFiles:   1,
		CurrentComponent: "Footer",
		Files:            []genevent.File{{Path: "src/components/Hero.tsx"}},
		StartedAt:        time.Now().Add(-5 * time.Second),
	}
}

func TestApp_ViewBeforeSize(t *testing.T) {
	m := NewAppModel("p1", nil)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q", got)
	}
	small := update(t, m, tea.WindowSizeMsg{Width: 30, Height: 5})
	if !strings.Contains(small.View(), "Terminal too small") {
		t.Errorf("small view = %q", small.View())
	}
}

func TestApp_StateUpdatesPanels(t *testing.T) {
	m := sized(t, NewAppModel("p1", nil))
	m = update(t, m, StateMsg{State: generatingState()})

	if m.Done() {
		t.Fatal("done while generating")
	}
	view := m.View()
	for _, want := range []string{"FILES", "Hero.tsx", "Footer", "1/2 files", "components"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestApp_IgnoresOtherProjects(t *testing.T) {
	m := sized(t, NewAppModel("p1", nil))
	other := generatingState()
	other.ProjectID = "p2"
	m = update(t, m, StateMsg{State: other})
	if st, _ := m.Result(); st.Status != "" {
		t.Errorf("state changed to %+v", st)
	}
}

func TestApp_ResultMarksDone(t *testing.T) {
	m := sized(t, NewAppModel("p1", nil))
	final := generatingState()
	final.Status = bgmanager.StatusComplete
	final.CompletedFiles = 2
	final.CurrentComponent = ""
	m = update(t, m, RunResultMsg{State: final})

	st, err := m.Result()
	if !m.Done() || err != nil || st.Status != bgmanager.StatusComplete {
		t.Fatalf("done=%v err=%v state=%+v", m.Done(), err, st)
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view does not show DONE")
	}
}

func TestApp_PipelineErrorBecomesResultError(t *testing.T) {
	m := sized(t, NewAppModel("p1", nil))
	failed := generatingState()
	failed.Status = bgmanager.StatusFailed
	failed.Error = "model refused"
	m = update(t, m, RunResultMsg{State: failed})

	_, err := m.Result()
	if err == nil || err.Error() != "model refused" {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(m.View(), "FAILED") {
		t.Error("view does not show FAILED")
	}
}

func TestApp_TransportErrorKept(t *testing.T) {
	m := NewAppModel("p1", nil)
	boom := errors.New("connection reset")
	m = update(t, m, RunResultMsg{State: generatingState(), Err: boom})
	if _, err := m.Result(); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestApp_QuitCancelsUnfinishedRun(t *testing.T) {
	cancelled := 0
	m := NewAppModel("p1", func() { cancelled++ })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if cancelled != 1 {
		t.Errorf("cancel called %d times", cancelled)
	}

	done := update(t, NewAppModel("p1", func() { cancelled++ }), RunResultMsg{State: generatingState()})
	done.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cancelled != 1 {
		t.Error("cancel called after the run ended")
	}
}

func TestApp_TabTogglesLogFocus(t *testing.T) {
	m := NewAppModel("p1", nil)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.log.IsFocused() {
		t.Error("log not focused after tab")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.log.IsFocused() {
		t.Error("log still focused after second tab")
	}
}

func TestApp_EventsReachLog(t *testing.T) {
	m := NewAppModel("p1", nil)
	m = update(t, m, EventMsg{Event: genevent.ComponentStart{ComponentName: "Hero"}, At: time.Now()})
	if m.log.Len() != 1 {
		t.Errorf("log len = %d", m.log.Len())
	}
}
