// ABOUTME: Incremental validator for a generation event sequence.
// ABOUTME: Flags events after a terminal, component lifecycle violations, and non-linear stages.
package genevent

import (
	"errors"
	"fmt"
)

var (
	// ErrAfterTerminal is returned for any event observed after a terminal event.
	ErrAfterTerminal = errors.New("event after terminal event")
	// ErrNoTerminal is returned by Finish when the sequence never terminated.
	ErrNoTerminal = errors.New("sequence ended without a terminal event")
)

// Checker tracks a single run's event sequence. The zero value is ready to use.
type Checker struct {
	stage      Stage
	open       map[string]bool
	started    map[string]bool
	completed  map[string]bool
	lastDone   int
	terminated bool
}

// Stage reports the most recently entered stage.
func (c *Checker) Stage() Stage { return c.stage }

// Terminated reports whether a terminal event has been observed.
func (c *Checker) Terminated() bool { return c.terminated }

// Observe validates e against everything seen so far.
func (c *Checker) Observe(e Event) error {
	if c.terminated {
		return fmt.Errorf("%w: %s", ErrAfterTerminal, e.EventType())
	}
	if c.open == nil {
		c.open = make(map[string]bool)
		c.started = make(map[string]bool)
		c.completed = make(map[string]bool)
	}

	switch ev := e.(type) {
	case StageStart:
		if !CanTransition(c.stage, ev.Stage) {
			return fmt.Errorf("illegal stage transition %q -> %q", c.stage, ev.Stage)
		}
		c.stage = ev.Stage
	case StageComplete:
		if ev.Stage != c.stage {
			return fmt.Errorf("stage-complete for %q while in %q", ev.Stage, c.stage)
		}
	case ComponentStart:
		if c.started[ev.ComponentName] {
			return fmt.Errorf("duplicate component-start for %q", ev.ComponentName)
		}
		c.started[ev.ComponentName] = true
		c.open[ev.ComponentName] = true
	case ComponentChunk:
		if !c.open[ev.ComponentName] {
			return fmt.Errorf("component-chunk for %q outside its start/complete", ev.ComponentName)
		}
	case ComponentComplete:
		if !c.open[ev.ComponentName] {
			if c.completed[ev.ComponentName] {
				return fmt.Errorf("duplicate component-complete for %q", ev.ComponentName)
			}
			return fmt.Errorf("component-complete for %q without component-start", ev.ComponentName)
		}
		if ev.CompletedFiles <= c.lastDone {
			return fmt.Errorf("completedFiles went from %d to %d", c.lastDone, ev.CompletedFiles)
		}
		if ev.CompletedFiles > ev.TotalFiles {
			return fmt.Errorf("completedFiles %d exceeds totalFiles %d", ev.CompletedFiles, ev.TotalFiles)
		}
		c.lastDone = ev.CompletedFiles
		delete(c.open, ev.ComponentName)
		c.completed[ev.ComponentName] = true
	case GenerationComplete:
		c.terminated = true
	case Error:
		c.terminated = true
		c.stage = StageError
	default:
		return fmt.Errorf("unknown event %T", e)
	}
	return nil
}

// Finish reports ErrNoTerminal if the sequence never reached a terminal event.
func (c *Checker) Finish() error {
	if !c.terminated {
		return ErrNoTerminal
	}
	return nil
}

// Check validates a complete sequence.
func Check(events []Event) error {
	var c Checker
	for i, e := range events {
		if err := c.Observe(e); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return c.Finish()
}
