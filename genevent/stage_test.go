// ABOUTME: Tests for the linear Stage state machine.
package genevent_test

import (
	"testing"

	"github.com/2389-research/sitegen/genevent"
)

func TestStage_Next(t *testing.T) {
	tests := []struct {
		from, want genevent.Stage
	}{
		{genevent.StageConfigAssembly, genevent.StageDesignSystem},
		{genevent.StageDesignSystem, genevent.StageBlueprint},
		{genevent.StageBlueprint, genevent.StageComponents},
		{genevent.StageComponents, genevent.StageAssembly},
		{genevent.StageAssembly, genevent.StageDone},
		{genevent.StageDone, ""},
		{genevent.StageError, ""},
	}
	for _, tt := range tests {
		if got := tt.from.Next(); got != tt.want {
			t.Errorf("%s.Next() = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to genevent.Stage
		want     bool
	}{
		{"", genevent.StageConfigAssembly, true},
		{"", genevent.StageBlueprint, false},
		{genevent.StageBlueprint, genevent.StageComponents, true},
		{genevent.StageBlueprint, genevent.StageDesignSystem, false},
		{genevent.StageBlueprint, genevent.StageAssembly, false},
		{genevent.StageComponents, genevent.StageError, true},
		{"", genevent.StageError, true},
		{genevent.StageError, genevent.StageConfigAssembly, false},
		{genevent.StageDone, genevent.StageError, false},
	}
	for _, tt := range tests {
		if got := genevent.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStage_Valid(t *testing.T) {
	if !genevent.StageError.Valid() || !genevent.StageAssembly.Valid() {
		t.Error("known stages reported invalid")
	}
	if genevent.Stage("deploy").Valid() {
		t.Error("unknown stage reported valid")
	}
}
