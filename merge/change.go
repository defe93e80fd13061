// ABOUTME: PendingChange model for visual edits and the client-side batch that accumulates them.
// ABOUTME: Within a batch a style change supersedes any earlier change to the same (cssPath, property).
package merge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ChangeType distinguishes literal text replacement from style overrides.
type ChangeType string

const (
	ChangeText  ChangeType = "text"
	ChangeStyle ChangeType = "style"
)

// PendingChange is one edit made in the visual editor.
type PendingChange struct {
	ID       string     `json:"id"`
	Type     ChangeType `json:"type"`
	CSSPath  string     `json:"cssPath"`
	OldText  string     `json:"oldText,omitempty"`
	NewText  string     `json:"newText,omitempty"`
	Property string     `json:"property,omitempty"`
	OldValue string     `json:"oldValue,omitempty"`
	NewValue string     `json:"newValue,omitempty"`
}

// Validate checks the fields each change type needs.
func (c PendingChange) Validate() error {
	switch c.Type {
	case ChangeText:
		if c.OldText == "" {
			return errors.New("text change needs oldText")
		}
	case ChangeStyle:
		if c.CSSPath == "" || c.Property == "" {
			return errors.New("style change needs cssPath and property")
		}
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

// Batch accumulates pending changes before they are submitted.
type Batch struct {
	changes []PendingChange
}

// Add records c, assigning an ID when it has none, and returns the stored change.
func (b *Batch) Add(c PendingChange) PendingChange {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Type == ChangeStyle {
		for i, prev := range b.changes {
			if prev.Type == ChangeStyle && prev.CSSPath == c.CSSPath && prev.Property == c.Property {
				if c.OldValue == "" {
					c.OldValue = prev.OldValue
				}
				b.changes[i] = c
				return c
			}
		}
	}
	b.changes = append(b.changes, c)
	return c
}

// Remove drops the change with id and reports whether it existed.
func (b *Batch) Remove(id string) bool {
	for i, c := range b.changes {
		if c.ID == id {
			b.changes = append(b.changes[:i], b.changes[i+1:]...)
			return true
		}
	}
	return false
}

// Changes returns a copy of the recorded changes in insertion order.
func (b *Batch) Changes() []PendingChange {
	return append([]PendingChange(nil), b.changes...)
}

// Len returns the number of recorded changes.
func (b *Batch) Len() int { return len(b.changes) }

// Clear empties the batch.
func (b *Batch) Clear() { b.changes = nil }

// ParseChanges decodes a JSON array of changes, validates each, and folds
// them through a Batch.
func ParseChanges(data []byte) ([]PendingChange, error) {
	var raw []PendingChange
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}
	var b Batch
	for i, c := range raw {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
		b.Add(c)
	}
	return b.Changes(), nil
}
