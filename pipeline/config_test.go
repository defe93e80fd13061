// ABOUTME: Tests for configuration normalization.
package pipeline

import (
	"errors"
	"reflect"
	"testing"
)

func TestAssemble_Defaults(t *testing.T) {
	cfg, err := Config{BusinessName: "  Northwind Plumbing "}.Assemble()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if cfg.BusinessName != "Northwind Plumbing" {
		t.Errorf("name = %q", cfg.BusinessName)
	}
	if cfg.Tone != "professional" || cfg.Locale != "en" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Pages, []string{"home"}) {
		t.Errorf("pages = %v", cfg.Pages)
	}
}

func TestAssemble_CleansLists(t *testing.T) {
	cfg, err := Config{
		BusinessName: "X",
		Pages:        []string{"Home", " about ", "", "home"},
		Sections:     []string{"Hero", "Hero", "Pricing"},
	}.Assemble()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !reflect.DeepEqual(cfg.Pages, []string{"home", "about"}) {
		t.Errorf("pages = %v", cfg.Pages)
	}
	if !reflect.DeepEqual(cfg.Sections, []string{"Hero", "Pricing"}) {
		t.Errorf("sections = %v", cfg.Sections)
	}
}

func TestAssemble_RequiresBusinessName(t *testing.T) {
	if _, err := (Config{}).Assemble(); !errors.Is(err, ErrMissingBusinessName) {
		t.Errorf("got %v, want ErrMissingBusinessName", err)
	}
}

func TestBlueprintValidate(t *testing.T) {
	tests := []struct {
		name    string
		bp      Blueprint
		wantErr bool
	}{
		{"empty", Blueprint{}, true},
		{"ok", Blueprint{Components: []ComponentSpec{{Name: "Hero", Path: "Hero.tsx"}}}, false},
		{"missing path", Blueprint{Components: []ComponentSpec{{Name: "Hero"}}}, true},
		{"duplicate name", Blueprint{Components: []ComponentSpec{{Name: "A", Path: "a"}, {Name: "A", Path: "b"}}}, true},
		{"duplicate path", Blueprint{Components: []ComponentSpec{{Name: "A", Path: "a"}, {Name: "B", Path: "a"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.bp.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlueprintNormalize_TrimsEntries(t *testing.T) {
	in := Blueprint{Components: []ComponentSpec{
		{Name: " Hero ", Path: " src/components/Hero.tsx\n"},
		{Name: "Footer", Path: "src/components/Footer.tsx"},
	}}
	out, err := in.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := out.Components[0]; got.Name != "Hero" || got.Path != "src/components/Hero.tsx" {
		t.Errorf("first component = %+v", got)
	}
	if in.Components[0].Name != " Hero " {
		t.Error("Normalize modified its input")
	}

	dup := Blueprint{Components: []ComponentSpec{{Name: "Hero", Path: "a"}, {Name: " Hero", Path: "b"}}}
	if _, err := dup.Normalize(); err == nil {
		t.Error("names equal after trimming should be rejected")
	}
}
