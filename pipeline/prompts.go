// ABOUTME: Prompt construction for the design-system, blueprint, and per-component requests.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

const designSystemPrompt = `You are a senior brand designer. Given a business description, produce a design system for its marketing website.

Output ONLY valid JSON with this exact schema (no markdown, no commentary):

{
  "colors": {"primary": "#hex", "secondary": "#hex", "accent": "#hex", "background": "#hex", "foreground": "#hex"},
  "typography": {"heading": "Font family", "body": "Font family"},
  "radius": "CSS length",
  "spacing": "compact|comfortable|spacious",
  "notes": "One paragraph on the visual direction"
}

Honor any colors or font the client asked for.`

const blueprintPrompt = `You are a front-end architect planning a Next.js website built with React, TypeScript and Tailwind CSS.

Output ONLY valid JSON with this exact schema (no markdown, no commentary):

{
  "components": [
    {"name": "Hero", "path": "src/components/Hero.tsx", "purpose": "What this file does", "section": "hero"}
  ]
}

Rules:
- List shared section components first, then pages under src/app/ (e.g. src/app/page.tsx), then src/app/globals.css last.
- Component names are PascalCase and unique. Paths are unique.
- Plan one page per requested page and only the sections the business needs.`

const componentPrompt = `You are an expert React and TypeScript developer. Write exactly one file of a Next.js website.

Output ONLY the file contents. No explanations, no markdown fences.
Use Tailwind CSS classes and the provided design system. Import sibling components by their planned paths.`

func designSystemInput(cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\n", cfg.BusinessName)
	writeField(&b, "Type", cfg.BusinessType)
	writeField(&b, "Description", cfg.Description)
	writeField(&b, "Audience", cfg.Audience)
	writeField(&b, "Tone", cfg.Tone)
	writeField(&b, "Requested colors", strings.Join(cfg.Colors, ", "))
	writeField(&b, "Requested font", cfg.Font)
	writeField(&b, "Locale", cfg.Locale)
	return b.String()
}

func blueprintInput(cfg Config, ds DesignSystem) string {
	var b strings.Builder
	b.WriteString(designSystemInput(cfg))
	writeField(&b, "Pages", strings.Join(cfg.Pages, ", "))
	writeField(&b, "Requested sections", strings.Join(cfg.Sections, ", "))
	b.WriteString("\nDesign system:\n")
	b.WriteString(mustJSON(ds))
	return b.String()
}

func componentInput(req ComponentRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File to write: %s (%s)\n", req.Spec.Path, req.Spec.Name)
	writeField(&b, "Purpose", req.Spec.Purpose)
	b.WriteString("\n")
	b.WriteString(designSystemInput(req.Config))
	b.WriteString("\nDesign system:\n")
	b.WriteString(mustJSON(req.Design))
	b.WriteString("\n\nFull plan:\n")
	for _, c := range req.Blueprint.Components {
		fmt.Fprintf(&b, "- %s -> %s\n", c.Name, c.Path)
	}
	if len(req.Previous) > 0 {
		b.WriteString("\nAlready written:\n")
		for _, f := range req.Previous {
			fmt.Fprintf(&b, "- %s\n", f.Path)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
