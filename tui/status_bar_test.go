// ABOUTME: Tests for the status bar's elapsed time and rendering.
package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/genevent"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{12*time.Second + 400*time.Millisecond, "12s"},
		{2*time.Minute + 30*time.Second, "2m30s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStatusBar_ElapsedStopsAtCompletion(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewStatusBarModel("p1")
	m.now = func() time.Time { return start.Add(time.Hour) }

	if m.Elapsed() != 0 {
		t.Errorf("elapsed before start = %v", m.Elapsed())
	}

	m.SetState(bgmanager.State{StartedAt: start})
	if m.Elapsed() != time.Hour {
		t.Errorf("running elapsed = %v", m.Elapsed())
	}

	done := start.Add(90 * time.Second)
	m.SetState(bgmanager.State{StartedAt: start, CompletedAt: &done})
	if m.Elapsed() != 90*time.Second {
		t.Errorf("completed elapsed = %v", m.Elapsed())
	}
}

func TestStatusBar_View(t *testing.T) {
	m := NewStatusBarModel("p1")
	if got := m.View(); !strings.Contains(got, "Stage: waiting") || !strings.Contains(got, "Active: -") {
		t.Errorf("idle view = %q", got)
	}
	m.SetState(bgmanager.State{Stage: genevent.StageComponents, CompletedFiles: 2, TotalFiles: 5, CurrentComponent: "Pricing"})
	got := m.View()
	for _, want := range []string{"Project: p1", "Stage: components", "2/5 files", "Active: Pricing"} {
		if !strings.Contains(got, want) {
			t.Errorf("view %q missing %q", got, want)
		}
	}
}
