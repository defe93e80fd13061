// ABOUTME: Path-based classification of generated files into file types and page sections.
package persist

import (
	"path"
	"strings"
)

// File types recorded with each generated file.
const (
	TypePage      = "page"
	TypeStyle     = "style"
	TypeConfig    = "config"
	TypeComponent = "component"
)

var styleExts = map[string]bool{".css": true, ".scss": true, ".sass": true, ".less": true}

var pageExts = map[string]bool{".tsx": true, ".jsx": true, ".ts": true, ".js": true, ".mdx": true, ".html": true, ".astro": true, ".vue": true, ".svelte": true}

var configPrefixes = []string{"next.config.", "tailwind.config.", "postcss.config.", "vite.config.", "astro.config.", "tsconfig", "package."}

// sections maps a lowercased component base name to its section tag.
var sections = map[string]string{
	"hero":         "hero",
	"navbar":       "header",
	"nav":          "header",
	"navigation":   "header",
	"header":       "header",
	"features":     "features",
	"services":     "services",
	"about":        "about",
	"testimonials": "testimonials",
	"pricing":      "pricing",
	"gallery":      "gallery",
	"faq":          "faq",
	"contact":      "contact",
	"cta":          "cta",
	"team":         "team",
	"footer":       "footer",
	"blog":         "blog",
}

// FileType infers the stored file type from a path.
func FileType(p string) string {
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(base))

	switch {
	case styleExts[ext]:
		return TypeStyle
	case ext == ".json" || ext == ".webmanifest":
		return TypeConfig
	}
	lower := strings.ToLower(base)
	for _, prefix := range configPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return TypeConfig
		}
	}
	if pageExts[ext] && isPagePath(p) {
		return TypePage
	}
	return TypeComponent
}

// isPagePath reports files under a pages directory or app-router page files.
func isPagePath(p string) bool {
	clean := "/" + strings.TrimPrefix(path.Clean(p), "/")
	if strings.Contains(clean, "/pages/") {
		return true
	}
	stem := strings.TrimSuffix(path.Base(clean), path.Ext(clean))
	return stem == "page" && strings.Contains(clean, "/app/")
}

// SectionType derives a best-effort section tag from a file's base name.
// Unknown names return "".
func SectionType(p string) string {
	stem := strings.ToLower(strings.TrimSuffix(path.Base(p), path.Ext(p)))
	if s, ok := sections[stem]; ok {
		return s
	}
	if trimmed := strings.TrimSuffix(stem, "section"); trimmed != stem {
		return sections[trimmed]
	}
	return ""
}
