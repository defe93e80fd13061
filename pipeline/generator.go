// ABOUTME: The Generator contract the runner drives, and the artifacts passed between stages.
// ABOUTME: A Generator produces a design system, a blueprint, and one file per blueprint entry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/sitegen/genevent"
)

// Generator is the external generation service.
type Generator interface {
	DesignSystem(ctx context.Context, cfg Config) (DesignSystem, error)
	Blueprint(ctx context.Context, cfg Config, ds DesignSystem) (Blueprint, error)
	// Component produces one file. emit may be called any number of times
	// with partial output before Component returns, and never after.
	Component(ctx context.Context, req ComponentRequest, emit func(chunk string)) (genevent.File, error)
}

// DesignSystem is the visual language shared by every generated file.
type DesignSystem struct {
	Colors     map[string]string `json:"colors"`
	Typography Typography        `json:"typography"`
	Radius     string            `json:"radius,omitempty"`
	Spacing    string            `json:"spacing,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// Typography names the font families used by the site.
type Typography struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Blueprint is the ordered plan of files to generate.
type Blueprint struct {
	Components []ComponentSpec `json:"components"`
}

// ComponentSpec is one planned output file.
type ComponentSpec struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Purpose string `json:"purpose,omitempty"`
	Section string `json:"section,omitempty"`
}

// ComponentRequest carries everything needed to generate one file.
type ComponentRequest struct {
	Config    Config
	Design    DesignSystem
	Blueprint Blueprint
	Spec      ComponentSpec
	Index     int
	// Previous holds the files already produced in this run.
	Previous []genevent.File
}

// ErrEmptyBlueprint is returned when a blueprint plans no files.
var ErrEmptyBlueprint = errors.New("blueprint has no components")

// Normalize returns a copy of b with names and paths trimmed. It fails when
// an entry lacks a name or a path, or when either repeats.
func (b Blueprint) Normalize() (Blueprint, error) {
	if len(b.Components) == 0 {
		return b, ErrEmptyBlueprint
	}
	out := b
	out.Components = make([]ComponentSpec, len(b.Components))
	names := make(map[string]bool, len(b.Components))
	paths := make(map[string]bool, len(b.Components))
	for i, c := range b.Components {
		c.Name, c.Path = strings.TrimSpace(c.Name), strings.TrimSpace(c.Path)
		if c.Name == "" || c.Path == "" {
			return b, fmt.Errorf("blueprint component %d: name and path are required", i)
		}
		if names[c.Name] {
			return b, fmt.Errorf("blueprint component %q listed twice", c.Name)
		}
		if paths[c.Path] {
			return b, fmt.Errorf("blueprint path %q listed twice", c.Path)
		}
		names[c.Name] = true
		paths[c.Path] = true
		out.Components[i] = c
	}
	return out, nil
}

// Validate reports whether b would normalize cleanly.
func (b Blueprint) Validate() error {
	_, err := b.Normalize()
	return err
}
