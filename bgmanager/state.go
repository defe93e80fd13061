// ABOUTME: Per-project generation state and the pure reducer that folds events into it.
// ABOUTME: Terminal events freeze the state; later events are ignored.
package bgmanager

import (
	"slices"
	"time"

	"github.com/2389-research/sitegen/genevent"
)

// Status is the lifecycle of a project's background generation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "error"
)

// Terminal reports whether no further events are folded into a state with
// this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// State is a project's background generation as seen by the client.
type State struct {
	ProjectID        string           `json:"projectId"`
	Status           Status           `json:"status"`
	Stage            genevent.Stage   `json:"stage,omitempty"`
	TotalFiles       int              `json:"totalFiles"`
	CompletedFiles   int              `json:"completedFiles"`
	CurrentComponent string           `json:"currentComponent,omitempty"`
	Files            []genevent.File  `json:"files,omitempty"`
	Error            string           `json:"error,omitempty"`
	Interrupted      bool             `json:"interrupted,omitempty"`
	EventCount       int              `json:"eventCount"`
	StartedAt        time.Time        `json:"startedAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	Events           []genevent.Event `json:"-"`
}

// Reduce returns the state after e. It never modifies s.
func Reduce(s State, e genevent.Event) State {
	if s.Status.Terminal() || e == nil {
		return s
	}
	s.EventCount++

	switch ev := e.(type) {
	case genevent.StageStart:
		s.Stage = ev.Stage
		if ev.TotalFiles != nil {
			s.TotalFiles = *ev.TotalFiles
		}
	case genevent.ComponentStart:
		s.CurrentComponent = ev.ComponentName
	case genevent.ComponentComplete:
		s.Files = append(slices.Clip(s.Files), ev.File)
		s.CompletedFiles = ev.CompletedFiles
		s.TotalFiles = ev.TotalFiles
		if s.CurrentComponent == ev.ComponentName {
			s.CurrentComponent = ""
		}
	case genevent.GenerationComplete:
		s.Status = StatusComplete
		s.Stage = genevent.StageDone
		s.TotalFiles = ev.TotalFiles
		s.CurrentComponent = ""
	case genevent.Error:
		s.Status = StatusFailed
		s.Stage = ev.Stage
		s.Error = ev.Message
		s.CurrentComponent = ""
	}
	return s
}

// Progress returns the completed fraction of files in [0, 1].
func (s State) Progress() float64 {
	if s.Status == StatusComplete {
		return 1
	}
	if s.TotalFiles <= 0 {
		return 0
	}
	return float64(s.CompletedFiles) / float64(s.TotalFiles)
}
