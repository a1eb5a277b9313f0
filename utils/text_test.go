package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", Prefix("abcdef", 3))
	assert.Equal(t, "ab", Prefix("ab", 3))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a \n\t b   c \n"))
	assert.Equal(t, "", CollapseWhitespace(" \n "))
}
