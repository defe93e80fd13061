// ABOUTME: Tests for the incremental event sequence checker.
// ABOUTME: Exercises both well-formed runs and each class of ordering violation.
package genevent_test

import (
	"errors"
	"testing"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/genevent/geneventtest"
)

var sampleFiles = []genevent.File{
	{Path: "src/components/Hero.tsx", Content: "hero"},
	{Path: "src/components/About.tsx", Content: "about"},
	{Path: "src/app/globals.css", Content: "body{}"},
}

func TestCheck_SuccessfulRun(t *testing.T) {
	if err := genevent.Check(geneventtest.Success(sampleFiles...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheck_FailedRun(t *testing.T) {
	if err := genevent.Check(geneventtest.FailAfter(2, "boom", sampleFiles...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheck_EventAfterTerminal(t *testing.T) {
	events := append(geneventtest.Success(sampleFiles...), genevent.ComponentStart{ComponentName: "Late"})
	err := genevent.Check(events)
	if !errors.Is(err, genevent.ErrAfterTerminal) {
		t.Fatalf("got %v, want ErrAfterTerminal", err)
	}
}

func TestCheck_MissingTerminal(t *testing.T) {
	events := geneventtest.Prelude()
	if err := genevent.Check(events); !errors.Is(err, genevent.ErrNoTerminal) {
		t.Fatalf("got %v, want ErrNoTerminal", err)
	}
}

func TestCheck_Violations(t *testing.T) {
	hero := genevent.File{Path: "Hero.tsx", Content: "x"}
	tests := []struct {
		name   string
		events []genevent.Event
	}{
		{
			name:   "complete without start",
			events: []genevent.Event{genevent.ComponentComplete{ComponentName: "Hero", File: hero, CompletedFiles: 1, TotalFiles: 1}},
		},
		{
			name: "duplicate complete",
			events: append(
				geneventtest.Component("Hero", hero, 1, 2),
				genevent.ComponentComplete{ComponentName: "Hero", File: hero, CompletedFiles: 2, TotalFiles: 2},
			),
		},
		{
			name: "duplicate start",
			events: []genevent.Event{
				genevent.ComponentStart{ComponentName: "Hero"},
				genevent.ComponentStart{ComponentName: "Hero"},
			},
		},
		{
			name:   "chunk before start",
			events: []genevent.Event{genevent.ComponentChunk{ComponentName: "Hero", Chunk: "x"}},
		},
		{
			name: "counter does not advance",
			events: append(
				geneventtest.Component("A", hero, 1, 2),
				geneventtest.Component("B", hero, 1, 2)...,
			),
		},
		{
			name: "stage skipped",
			events: []genevent.Event{
				genevent.StageStart{Stage: genevent.StageConfigAssembly},
				genevent.StageStart{Stage: genevent.StageBlueprint},
			},
		},
		{
			name: "stage revisited",
			events: []genevent.Event{
				genevent.StageStart{Stage: genevent.StageConfigAssembly},
				genevent.StageStart{Stage: genevent.StageDesignSystem},
				genevent.StageStart{Stage: genevent.StageConfigAssembly},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c genevent.Checker
			var failed bool
			for _, e := range tt.events {
				if err := c.Observe(e); err != nil {
					failed = true
					break
				}
			}
			if !failed {
				t.Fatal("expected a violation")
			}
		})
	}
}

func TestChecker_ErrorMovesToErrorStage(t *testing.T) {
	var c genevent.Checker
	for _, e := range geneventtest.FailAfter(0, "nope", sampleFiles...) {
		if err := c.Observe(e); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if c.Stage() != genevent.StageError {
		t.Errorf("stage = %q, want error", c.Stage())
	}
	if !c.Terminated() {
		t.Error("expected terminated")
	}
}
