// ABOUTME: Applies pending visual edits to a version's files to produce the next version's file set.
// ABOUTME: Text edits are literal first-match replacements; style edits append an override block to the global stylesheet.
package merge

import (
	"path"
	"slices"
	"strings"
	"unicode"
)

// File is one file of a version.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DefaultStylesheet is created when no global stylesheet exists.
const DefaultStylesheet = "src/app/globals.css"

// OverrideMarker opens every generated style block.
const OverrideMarker = "/* sitegen: visual editor overrides */"

var stylesheetNames = []string{"globals.css", "global.css", "index.css", "styles.css", "app.css"}

var markupExts = map[string]bool{
	".tsx": true, ".jsx": true, ".html": true, ".htm": true,
	".vue": true, ".svelte": true, ".astro": true, ".mdx": true,
}

// Report summarizes a merge.
type Report struct {
	Applied    int      `json:"applied"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skippedIds,omitempty"`
	Stylesheet string   `json:"stylesheet,omitempty"`
}

func (r *Report) skip(c PendingChange) {
	r.Skipped++
	r.SkippedIDs = append(r.SkippedIDs, c.ID)
}

// Merger applies change batches. Stylesheet, when set, names the file that
// receives style overrides.
type Merger struct {
	Stylesheet string
}

// Apply returns a new file set with changes applied. files is not modified.
// Text and style changes are independent of each other.
func (m Merger) Apply(files []File, changes []PendingChange) ([]File, Report) {
	out := slices.Clone(files)
	var rep Report

	var styles []PendingChange
	for _, c := range changes {
		switch c.Type {
		case ChangeText:
			if applyText(out, c) {
				rep.Applied++
			} else {
				rep.skip(c)
			}
		case ChangeStyle:
			styles = append(styles, c)
		default:
			rep.skip(c)
		}
	}

	if len(styles) > 0 {
		out = m.applyStyles(out, styles, &rep)
	}
	return out, rep
}

// IsMarkup reports whether p is a file text edits may touch.
func IsMarkup(p string) bool {
	return markupExts[strings.ToLower(path.Ext(p))]
}

// applyText replaces the first occurrence of the old text across markup
// files, retrying once with both sides trimmed.
func applyText(files []File, c PendingChange) bool {
	if c.OldText == "" || c.OldText == c.NewText {
		return false
	}
	if replaceFirst(files, c.OldText, c.NewText) {
		return true
	}
	oldT, newT := strings.TrimSpace(c.OldText), strings.TrimSpace(c.NewText)
	if oldT == "" || oldT == newT || oldT == c.OldText {
		return false
	}
	return replaceFirst(files, oldT, newT)
}

func replaceFirst(files []File, old, repl string) bool {
	for i, f := range files {
		if !IsMarkup(f.Path) || !strings.Contains(f.Content, old) {
			continue
		}
		files[i].Content = strings.Replace(f.Content, old, repl, 1)
		return true
	}
	return false
}

type rule struct {
	selector string
	props    []string
	values   map[string]string
}

func (m Merger) applyStyles(files []File, changes []PendingChange, rep *Report) []File {
	var rules []*rule
	bySelector := make(map[string]*rule)

	for _, c := range changes {
		sel := strings.TrimSpace(c.CSSPath)
		prop := kebab(strings.TrimSpace(c.Property))
		val := cleanValue(c.NewValue)
		if sel == "" || prop == "" || val == "" || strings.ContainsAny(sel+prop+val, "{};") {
			rep.skip(c)
			continue
		}
		r, ok := bySelector[sel]
		if !ok {
			r = &rule{selector: sel, values: make(map[string]string)}
			bySelector[sel] = r
			rules = append(rules, r)
		}
		if _, seen := r.values[prop]; !seen {
			r.props = append(r.props, prop)
		}
		r.values[prop] = val
		rep.Applied++
	}
	if len(rules) == 0 {
		return files
	}

	var b strings.Builder
	b.WriteString(OverrideMarker)
	b.WriteByte('\n')
	for i, r := range rules {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.selector)
		b.WriteString(" {\n")
		for _, p := range r.props {
			b.WriteString("  ")
			b.WriteString(p)
			b.WriteString(": ")
			b.WriteString(r.values[p])
			b.WriteString(" !important;\n")
		}
		b.WriteString("}\n")
	}
	block := b.String()

	idx := m.stylesheetIndex(files)
	if idx < 0 {
		p := m.Stylesheet
		if p == "" {
			p = DefaultStylesheet
		}
		rep.Stylesheet = p
		return append(files, File{Path: p, Content: block})
	}

	rep.Stylesheet = files[idx].Path
	content := files[idx].Content
	switch {
	case content == "":
	case strings.HasSuffix(content, "\n"):
		content += "\n"
	default:
		content += "\n\n"
	}
	files[idx].Content = content + block
	return files
}

func (m Merger) stylesheetIndex(files []File) int {
	if m.Stylesheet != "" {
		return slices.IndexFunc(files, func(f File) bool { return f.Path == m.Stylesheet })
	}
	for _, name := range stylesheetNames {
		if i := slices.IndexFunc(files, func(f File) bool { return path.Base(f.Path) == name }); i >= 0 {
			return i
		}
	}
	return -1
}

// cleanValue strips a trailing semicolon and any existing !important.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, ";")
	v = strings.TrimSpace(v)
	if lower := strings.ToLower(v); strings.HasSuffix(lower, "!important") {
		v = strings.TrimSpace(v[:len(v)-len("!important")])
	}
	return v
}

// kebab converts a camelCase DOM style property to its CSS name. Names that
// already contain a dash pass through lowercased.
func kebab(prop string) string {
	if prop == "" || strings.Contains(prop, "-") {
		return strings.ToLower(prop)
	}
	var b strings.Builder
	if strings.HasPrefix(prop, "ms") && len(prop) > 2 && unicode.IsUpper(rune(prop[2])) {
		b.WriteByte('-')
	}
	for _, r := range prop {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
