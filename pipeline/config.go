// ABOUTME: Generation configuration and its normalization, performed as the config-assembly stage.
// ABOUTME: Trims input, applies defaults, and rejects configurations without a business name.
package pipeline

import (
	"errors"
	"strings"
)

// ErrMissingBusinessName is returned by Assemble when no business name is set.
var ErrMissingBusinessName = errors.New("business name is required")

// Config describes the business a site is generated for.
type Config struct {
	BusinessName string   `json:"businessName" yaml:"business_name"`
	BusinessType string   `json:"businessType,omitempty" yaml:"business_type,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Audience     string   `json:"audience,omitempty" yaml:"audience,omitempty"`
	Tone         string   `json:"tone,omitempty" yaml:"tone,omitempty"`
	Pages        []string `json:"pages,omitempty" yaml:"pages,omitempty"`
	Sections     []string `json:"sections,omitempty" yaml:"sections,omitempty"`
	Colors       []string `json:"colors,omitempty" yaml:"colors,omitempty"`
	Font         string   `json:"font,omitempty" yaml:"font,omitempty"`
	Locale       string   `json:"locale,omitempty" yaml:"locale,omitempty"`
}

const (
	defaultTone   = "professional"
	defaultLocale = "en"
)

// Assemble returns a normalized copy of c.
func (c Config) Assemble() (Config, error) {
	out := Config{
		BusinessName: strings.TrimSpace(c.BusinessName),
		BusinessType: strings.TrimSpace(c.BusinessType),
		Description:  strings.TrimSpace(c.Description),
		Audience:     strings.TrimSpace(c.Audience),
		Tone:         strings.TrimSpace(c.Tone),
		Font:         strings.TrimSpace(c.Font),
		Locale:       strings.TrimSpace(c.Locale),
		Pages:        cleanList(c.Pages, true),
		Sections:     cleanList(c.Sections, false),
		Colors:       cleanList(c.Colors, true),
	}
	if out.BusinessName == "" {
		return Config{}, ErrMissingBusinessName
	}
	if out.Tone == "" {
		out.Tone = defaultTone
	}
	if out.Locale == "" {
		out.Locale = defaultLocale
	}
	if len(out.Pages) == 0 {
		out.Pages = []string{"home"}
	}
	return out, nil
}

// cleanList trims entries and drops blanks and duplicates, keeping order.
func cleanList(in []string, lower bool) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
