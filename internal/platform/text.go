package platform

import (
	"strings"
	"unicode"
)

// ExtractHashtags returns the lower-cased hashtags of text without the '#'.
func ExtractHashtags(text string) []string {
	var tags []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.'
	}) {
		if len(field) < 2 || field[0] != '#' {
			continue
		}
		tags = append(tags, strings.ToLower(strings.TrimLeft(field, "#")))
	}
	return tags
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
