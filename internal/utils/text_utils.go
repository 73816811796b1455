// Package utils provides text helpers shared by the core types and the
// oracle adapters.
package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateText truncates text to at most maxSize bytes, backing off to a
// valid UTF-8 boundary.
func TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}
	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}

// SanitizeUTF8 replaces invalid UTF-8 sequences so text can be embedded in
// JSON payloads safely.
func SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// ExtractJSON pulls the JSON object out of a model response that may wrap it
// in markdown fences or surrounding prose. Returns the raw object text and
// whether one was found.
func ExtractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.Contains(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = parts[1]
			text = strings.TrimPrefix(text, "json")
			text = strings.TrimSpace(text)
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
