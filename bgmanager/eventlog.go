// ABOUTME: Bounded in-memory event log kept per background generation.
// ABOUTME: Past the high-water mark the oldest events are dropped down to the keep size.
package bgmanager

import (
	"slices"

	"github.com/2389-research/sitegen/genevent"
)

// Default event log bounds.
const (
	DefaultLogHighWater = 2000
	DefaultLogKeep      = 1500
)

// EventLog is a fixed-capacity queue of the most recent events.
type EventLog struct {
	items     []genevent.Event
	highWater int
	keep      int
	trimmed   int
}

// NewEventLog returns a log that trims to keep once it holds more than
// highWater events. Invalid bounds fall back to the defaults.
func NewEventLog(highWater, keep int) *EventLog {
	if highWater <= 0 || keep <= 0 || keep > highWater {
		highWater, keep = DefaultLogHighWater, DefaultLogKeep
	}
	return &EventLog{items: make([]genevent.Event, 0, highWater+1), highWater: highWater, keep: keep}
}

// Append adds e, trimming the oldest events when past the high-water mark.
func (l *EventLog) Append(e genevent.Event) {
	l.items = append(l.items, e)
	if len(l.items) > l.highWater {
		drop := len(l.items) - l.keep
		n := copy(l.items, l.items[drop:])
		clear(l.items[n:])
		l.items = l.items[:n]
		l.trimmed += drop
	}
}

// Events returns a copy of the retained events, oldest first.
func (l *EventLog) Events() []genevent.Event {
	return slices.Clone(l.items)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int { return len(l.items) }

// Trimmed returns how many events have been dropped so far.
func (l *EventLog) Trimmed() int { return l.trimmed }
