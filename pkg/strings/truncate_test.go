package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "", Truncate("", 10))
}

func TestTruncateAddsEllipsis(t *testing.T) {
	assert.Equal(t, "hello w...", Truncate("hello world this is long", 10))
}

func TestTruncateFlattensWhitespace(t *testing.T) {
	assert.Equal(t, "line one line two", Truncate("line one\nline two", 40))
	assert.Equal(t, "a b c", Truncate("a \t b \r\n c", 40))
}

func TestTruncateHandlesUnicode(t *testing.T) {
	out := Truncate("grüß göttle of kärnten", 10)
	assert.Equal(t, "grüß gö...", out)
}

func TestTruncateClampsTinyMaxLen(t *testing.T) {
	assert.Equal(t, "a...", Truncate("abcdef", 1))
}
