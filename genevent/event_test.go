// ABOUTME: Tests for the generation event tagged union and its JSON wire form.
// ABOUTME: Covers discriminator values, camelCase field names, and round-trips for all variants.
package genevent_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/2389-research/sitegen/genevent"
)

func allVariants() []genevent.Event {
	return []genevent.Event{
		genevent.StageStart{Stage: genevent.StageConfigAssembly},
		genevent.StageStart{Stage: genevent.StageComponents, TotalFiles: genevent.IntPtr(3)},
		genevent.StageComplete{Stage: genevent.StageBlueprint},
		genevent.ComponentStart{ComponentName: "Hero"},
		genevent.ComponentChunk{ComponentName: "Hero", Chunk: "export default function Hero() {\n"},
		genevent.ComponentComplete{
			ComponentName:  "Hero",
			File:           genevent.File{Path: "src/components/Hero.tsx", Content: "<h1>Hi</h1>"},
			CompletedFiles: 1,
			TotalFiles:     3,
		},
		genevent.GenerationComplete{TotalFiles: 3},
		genevent.Error{Stage: genevent.StageDesignSystem, Message: "upstream timed out"},
	}
}

func TestMarshal_RoundTripAllVariants(t *testing.T) {
	for _, e := range allVariants() {
		data, err := genevent.Marshal(e)
		if err != nil {
			t.Fatalf("marshal %T: %v", e, err)
		}
		got, err := genevent.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !reflect.DeepEqual(got, e) {
			t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, e)
		}
	}
}

func TestMarshal_WireShape(t *testing.T) {
	tests := []struct {
		event genevent.Event
		want  string
	}{
		{genevent.StageStart{Stage: genevent.StageBlueprint}, `{"type":"stage-start","stage":"blueprint"}`},
		{genevent.StageStart{Stage: genevent.StageComponents, TotalFiles: genevent.IntPtr(2)}, `{"type":"stage-start","stage":"components","totalFiles":2}`},
		{genevent.ComponentStart{ComponentName: "Footer"}, `{"type":"component-start","componentName":"Footer"}`},
		{genevent.GenerationComplete{TotalFiles: 0}, `{"type":"generation-complete","totalFiles":0}`},
		{genevent.Error{Stage: genevent.StageAssembly, Message: "boom"}, `{"type":"error","stage":"assembly","error":"boom"}`},
	}
	for _, tt := range tests {
		data, err := genevent.Marshal(tt.event)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != tt.want {
			t.Errorf("got %s, want %s", data, tt.want)
		}
	}
}

func TestMarshal_ComponentCompleteFieldNames(t *testing.T) {
	data, err := genevent.Marshal(genevent.ComponentComplete{
		ComponentName:  "Nav",
		File:           genevent.File{Path: "Nav.tsx", Content: "x"},
		CompletedFiles: 1,
		TotalFiles:     1,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	for _, key := range []string{"type", "componentName", "file", "completedFiles", "totalFiles"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if !strings.Contains(string(raw["file"]), `"path":"Nav.tsx"`) {
		t.Errorf("file object = %s", raw["file"])
	}
}

func TestMarshal_NilReturnsError(t *testing.T) {
	if _, err := genevent.Marshal(nil); err == nil {
		t.Fatal("expected error for nil event")
	}
}

func TestUnmarshal_UnknownTypeReturnsError(t *testing.T) {
	if _, err := genevent.Unmarshal([]byte(`{"type":"stage-skip"}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestUnmarshal_InvalidJSONReturnsError(t *testing.T) {
	if _, err := genevent.Unmarshal([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, e := range allVariants() {
		want := e.EventType() == genevent.TypeGenerationComplete || e.EventType() == genevent.TypeError
		if got := genevent.IsTerminal(e); got != want {
			t.Errorf("IsTerminal(%T) = %v, want %v", e, got, want)
		}
	}
}
