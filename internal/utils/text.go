package utils

import (
	"strings"
	"unicode/utf8"
)

// CharCount counts user-visible characters the way the composer does.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}

// HasMinChars reports whether s, ignoring surrounding whitespace, is at least
// min characters long.
func HasMinChars(s string, min int) bool {
	return CharCount(strings.TrimSpace(s)) >= min
}

// CleanStrings trims every entry and drops the empty ones.
func CleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
