package strings

import (
	"strings"
)

// MinTruncateLen is the smallest usable maxLen for Truncate. Anything
// shorter leaves no room for content plus the ellipsis.
const MinTruncateLen = 4

// Truncate flattens a string to a single line and caps it at maxLen runes,
// appending "..." when it was cut. Table cells in the CLI output go through
// this so multi-line error messages cannot break row layout.
//
// Rune-based slicing keeps multi-byte characters intact. A maxLen below
// MinTruncateLen is clamped up to it.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
