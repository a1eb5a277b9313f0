package utils

import "strings"

// Truncate returns the first n runes of s followed by "..." when s is longer.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Prefix returns at most the first n runes of s.
func Prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CollapseWhitespace replaces every run of whitespace with one space and trims.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
