// ABOUTME: Bubble Tea message types carrying background-generation updates into the TUI loop.
package tui

import (
	"time"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/genevent"
)

// StateMsg carries a manager notification.
type StateMsg struct {
	State bgmanager.State
}

// EventMsg carries one raw generation event for the log panel.
type EventMsg struct {
	Event genevent.Event
	At    time.Time
}

// RunResultMsg signals that the run has ended, successfully or not.
type RunResultMsg struct {
	State bgmanager.State
	Err   error
}
