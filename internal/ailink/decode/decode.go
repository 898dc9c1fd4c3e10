// Package decode recovers a JSON value from free-form model output.
package decode

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	openFence  = regexp.MustCompile("(?i)```json\\s*")
	closeFence = regexp.MustCompile("```\\s*")
)

// Span strips code fences and returns the text from the first '{' or '['
// through the last '}' or ']'. It reports false when no bracket is present.
func Span(raw string) (string, bool) {
	cleaned := openFence.ReplaceAllString(raw, "")
	cleaned = closeFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.IndexAny(cleaned, "{[")
	if start == -1 {
		return "", false
	}
	cleaned = cleaned[start:]

	end := strings.LastIndexAny(cleaned, "}]")
	if end == -1 {
		return "", false
	}
	return cleaned[:end+1], true
}

// Decode parses the JSON span of raw into T. It makes exactly one parse
// attempt and never panics; ok is false when nothing usable was found.
func Decode[T any](raw string) (value T, ok bool) {
	span, found := Span(raw)
	if !found {
		return value, false
	}
	var out T
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return value, false
	}
	return out, true
}
