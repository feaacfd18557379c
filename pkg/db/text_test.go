package db

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTextKeepsRuneBoundary(t *testing.T) {
	message := strings.Repeat("a", 1023) + "é tail"

	got := TruncateText(message, 1024)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 1023), got)

	got = TruncateText(strings.Repeat("a", 1022)+"é tail", 1024)
	assert.Equal(t, strings.Repeat("a", 1022)+"é", got)
}

func TestTruncateTextCleansInput(t *testing.T) {
	assert.Equal(t, "a?b", SanitizeText("a\xc3b"))
	assert.Equal(t, "short", TruncateText("short", 1024))
	assert.Equal(t, "bad?byte", TruncateText("bad\xffbyte", 1024))
	assert.Equal(t, "nulbyte", TruncateText("nul\x00byte", 1024))
	assert.Equal(t, "", TruncateText("anything", 0))

	wide := strings.Repeat("語", 10)
	got := TruncateText(wide, 10)
	assert.Equal(t, strings.Repeat("語", 3), got)
}
