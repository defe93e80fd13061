// ABOUTME: Tolerant parsing of model output: JSON extraction and code fence removal.
// ABOUTME: JSON is tried raw, then with fences stripped, then as the outermost brace span.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON decodes a T from model output using a 3-tier strategy.
func ExtractJSON[T any](text string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, nil
	}

	var fenced T
	if err := json.Unmarshal([]byte(stripJSONFences(text)), &fenced); err == nil {
		return fenced, nil
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		var span T
		if err := json.Unmarshal([]byte(text[first:last+1]), &span); err == nil {
			return span, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("no JSON object found in model output (%d bytes)", len(text))
}

// stripJSONFences removes fence lines and blank lines outside fences.
func stripJSONFences(text string) string {
	var lines []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// StripCodeFence unwraps a file body the model wrapped in a single fenced
// block. Blank lines inside the code are kept.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return text
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return ""
	}
	t = t[nl+1:]
	if end := strings.LastIndex(t, "```"); end >= 0 && strings.TrimSpace(t[end+3:]) == "" {
		t = t[:end]
	}
	return strings.TrimRight(t, " \t\n") + "\n"
}
