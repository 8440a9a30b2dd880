package utils

import "strings"

// TruncateRunes cuts s to at most limit runes and appends suffix when cut.
// A non-positive limit leaves s untouched.
func TruncateRunes(s string, limit int, suffix string) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + suffix
}

// TruncateForLog renders a prompt or answer preview for a single log line:
// whitespace runs (newlines included) collapse to one space and the result is
// cut to limit runes. A non-positive limit disables previews.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	return TruncateRunes(strings.Join(strings.Fields(s), " "), limit, "...")
}
