package db

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText makes s storable in a Postgres TEXT column: invalid UTF-8
// becomes '?' and NUL bytes are dropped.
func SanitizeText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "?"), "\x00", "")
}

// TruncateText sanitizes s and cuts it to at most maxBytes bytes on a rune
// boundary.
func TruncateText(s string, maxBytes int) string {
	s = SanitizeText(s)
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	n := maxBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
