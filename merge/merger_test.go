// ABOUTME: Tests for applying text and style edits to a version's files.
// ABOUTME: Covers first-match replacement, trimmed retry, override blocks, and input immutability.
package merge

import (
	"reflect"
	"strings"
	"testing"
)

func TestApply_EmptyChangesIsIdentity(t *testing.T) {
	files := []File{{Path: "a.tsx", Content: "Hello"}, {Path: "src/app/globals.css", Content: "body{}"}}
	got, rep := Merger{}.Apply(files, nil)
	if !reflect.DeepEqual(got, files) {
		t.Errorf("got %#v, want input unchanged", got)
	}
	if rep.Applied != 0 || rep.Skipped != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_TextSubstitution(t *testing.T) {
	files := []File{{Path: "a.tsx", Content: "Hello World"}}
	change := PendingChange{ID: "1", Type: ChangeText, OldText: "World", NewText: "Friend"}

	got, rep := Merger{}.Apply(files, []PendingChange{change})
	want := []File{{Path: "a.tsx", Content: "Hello Friend"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	if rep.Applied != 1 {
		t.Errorf("applied = %d", rep.Applied)
	}

	again, rep := Merger{}.Apply(got, []PendingChange{change})
	if !reflect.DeepEqual(again, want) {
		t.Errorf("second apply changed files: %#v", again)
	}
	if rep.Skipped != 1 || rep.SkippedIDs[0] != "1" {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_TextFirstOccurrenceAcrossFiles(t *testing.T) {
	files := []File{
		{Path: "src/app/globals.css", Content: "Call us"},
		{Path: "src/components/Hero.tsx", Content: "<p>Call us</p><p>Call us</p>"},
		{Path: "src/components/Footer.tsx", Content: "Call us"},
	}
	got, _ := Merger{}.Apply(files, []PendingChange{{Type: ChangeText, OldText: "Call us", NewText: "Email us"}})

	if got[0].Content != "Call us" {
		t.Error("stylesheet is not markup and must not be edited")
	}
	if got[1].Content != "<p>Email us</p><p>Call us</p>" {
		t.Errorf("hero = %q", got[1].Content)
	}
	if got[2].Content != "Call us" {
		t.Error("only the first match across files is replaced")
	}
}

func TestApply_TextTrimmedRetry(t *testing.T) {
	files := []File{{Path: "page.html", Content: "<h1>Fresh bread daily</h1>"}}
	got, rep := Merger{}.Apply(files, []PendingChange{{Type: ChangeText, OldText: "\n  Fresh bread daily  ", NewText: " Fresh bread, baked daily\n"}})
	if got[0].Content != "<h1>Fresh bread, baked daily</h1>" {
		t.Errorf("content = %q", got[0].Content)
	}
	if rep.Applied != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_TextSameOldAndNewSkipped(t *testing.T) {
	files := []File{{Path: "a.tsx", Content: "Same"}}
	_, rep := Merger{}.Apply(files, []PendingChange{{Type: ChangeText, OldText: "Same", NewText: "Same"}})
	if rep.Applied != 0 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_StyleOverride(t *testing.T) {
	files := []File{
		{Path: "src/components/Hero.tsx", Content: "<div className=\"hero\"><h1>Hi</h1></div>"},
		{Path: "src/app/globals.css", Content: "@tailwind base;"},
	}
	change := PendingChange{Type: ChangeStyle, CSSPath: "div.hero > h1", Property: "color", NewValue: "#ff0000"}

	got, rep := Merger{}.Apply(files, []PendingChange{change})
	css := got[1].Content
	if !strings.HasPrefix(css, "@tailwind base;\n\n"+OverrideMarker) {
		t.Errorf("override block not appended: %q", css)
	}
	if !strings.Contains(css, "div.hero > h1 {\n  color: #ff0000 !important;\n}") {
		t.Errorf("rule missing: %q", css)
	}
	if got[0] != files[0] {
		t.Error("markup must not change for style edits")
	}
	if rep.Stylesheet != "src/app/globals.css" || rep.Applied != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_StylesGroupedBySelector(t *testing.T) {
	files := []File{{Path: "styles/index.css", Content: ""}}
	changes := []PendingChange{
		{Type: ChangeStyle, CSSPath: "section#about", Property: "backgroundColor", NewValue: "#fff"},
		{Type: ChangeStyle, CSSPath: "nav > a", Property: "fontSize", NewValue: "18px;"},
		{Type: ChangeStyle, CSSPath: "section#about", Property: "padding-top", NewValue: "2rem !important"},
		{Type: ChangeStyle, CSSPath: "section#about", Property: "backgroundColor", NewValue: "#000"},
	}
	got, _ := Merger{}.Apply(files, changes)

	want := OverrideMarker + "\n" +
		"section#about {\n  background-color: #000 !important;\n  padding-top: 2rem !important;\n}\n" +
		"\n" +
		"nav > a {\n  font-size: 18px !important;\n}\n"
	if got[0].Content != want {
		t.Errorf("stylesheet =\n%s\nwant\n%s", got[0].Content, want)
	}
}

func TestApply_StylesheetPreference(t *testing.T) {
	files := []File{
		{Path: "src/app.css", Content: "a{}"},
		{Path: "src/app/globals.css", Content: "b{}"},
	}
	got, rep := Merger{}.Apply(files, []PendingChange{{Type: ChangeStyle, CSSPath: "p", Property: "color", NewValue: "red"}})
	if rep.Stylesheet != "src/app/globals.css" {
		t.Errorf("stylesheet = %s", rep.Stylesheet)
	}
	if got[0].Content != "a{}" {
		t.Error("lower-priority stylesheet was edited")
	}

	explicit := Merger{Stylesheet: "src/app.css"}
	_, rep = explicit.Apply(files, []PendingChange{{Type: ChangeStyle, CSSPath: "p", Property: "color", NewValue: "red"}})
	if rep.Stylesheet != "src/app.css" {
		t.Errorf("explicit stylesheet = %s", rep.Stylesheet)
	}
}

func TestApply_CreatesStylesheetWhenMissing(t *testing.T) {
	files := []File{{Path: "src/components/Hero.tsx", Content: "x"}}
	got, rep := Merger{}.Apply(files, []PendingChange{{Type: ChangeStyle, CSSPath: "h1", Property: "color", NewValue: "blue"}})
	if len(got) != 2 || got[1].Path != DefaultStylesheet {
		t.Fatalf("files = %#v", got)
	}
	if rep.Stylesheet != DefaultStylesheet {
		t.Errorf("report = %+v", rep)
	}
	if len(files) != 1 {
		t.Error("input slice was extended")
	}
}

func TestApply_RejectsUnsafeStyleValues(t *testing.T) {
	files := []File{{Path: "globals.css", Content: ""}}
	_, rep := Merger{}.Apply(files, []PendingChange{
		{Type: ChangeStyle, CSSPath: "h1", Property: "color", NewValue: "red} body {display:none"},
		{Type: ChangeStyle, CSSPath: "", Property: "color", NewValue: "red"},
		{Type: ChangeStyle, CSSPath: "h1", Property: "color", NewValue: ""},
	})
	if rep.Applied != 0 || rep.Skipped != 3 {
		t.Errorf("report = %+v", rep)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	files := []File{{Path: "a.tsx", Content: "Hello World"}, {Path: "globals.css", Content: "x{}"}}
	orig := append([]File(nil), files...)
	Merger{}.Apply(files, []PendingChange{
		{Type: ChangeText, OldText: "World", NewText: "There"},
		{Type: ChangeStyle, CSSPath: "h1", Property: "color", NewValue: "red"},
	})
	if !reflect.DeepEqual(files, orig) {
		t.Errorf("input mutated: %#v", files)
	}
}

func TestKebab(t *testing.T) {
	tests := map[string]string{
		"color":           "color",
		"backgroundColor": "background-color",
		"WebkitTransform": "-webkit-transform",
		"msTransform":     "-ms-transform",
		"border-radius":   "border-radius",
		"Font-Weight":     "font-weight",
	}
	for in, want := range tests {
		if got := kebab(in); got != want {
			t.Errorf("kebab(%q) = %q, want %q", in, got, want)
		}
	}
}
