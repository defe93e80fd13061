// ABOUTME: Bridge from the Background Generation Manager's callbacks to a tea.Program.
// ABOUTME: Listener and Observer wrap their arguments as messages and hand them to Send.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/sitegen/bgmanager"
	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/pipeline"
)

// Bridge injects manager updates into the Bubble Tea message loop.
type Bridge struct {
	send func(tea.Msg)
	now  func() time.Time
}

// NewBridge creates a Bridge that delivers through send, usually program.Send.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send, now: time.Now}
}

// Listen satisfies bgmanager.Listener.
func (b *Bridge) Listen(s bgmanager.State) {
	b.send(StateMsg{State: s})
}

// Observe satisfies bgmanager.Observer.
func (b *Bridge) Observe(e genevent.Event) {
	b.send(EventMsg{Event: e, At: b.now()})
}

// Follow subscribes to projectID, starts its generation and reports the
// final outcome as a RunResultMsg. It blocks until the run ends and is
// meant to run on its own goroutine. started is false when a run for the
// project was already in progress and is being followed instead.
func (b *Bridge) Follow(ctx context.Context, m *bgmanager.Manager, projectID string, cfg pipeline.Config) (started bool) {
	unsubscribe := m.Subscribe(projectID, b.Listen)
	defer unsubscribe()

	run, started := m.Start(ctx, projectID, cfg, b.Observe)
	st, err := run.Wait(ctx)
	b.send(RunResultMsg{State: st, Err: err})
	return started
}
