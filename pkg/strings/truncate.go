package strings

import (
	"fmt"
	"strings"
)

// DefaultErrorMaxLen bounds remote error bodies copied into results and logs.
const DefaultErrorMaxLen = 200

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate collapses all whitespace runs to single spaces and cuts the result
// to maxLen runes, ending with "..." when something was cut.
// maxLen below MinTruncateLen is clamped.
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

// Sample returns at most n leading items and whether the input was longer.
func Sample[T any](items []T, n int) ([]T, bool) {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return items, false
	}
	return items[:n], true
}

// FormatSample renders up to n items as "[a b c] ..." for log lines.
func FormatSample[T any](items []T, n int) string {
	head, more := Sample(items, n)
	parts := make([]string, len(head))
	for i, item := range head {
		parts[i] = fmt.Sprint(item)
	}
	out := "[" + strings.Join(parts, " ") + "]"
	if more {
		out += fmt.Sprintf(" ... (+%d)", len(items)-len(head))
	}
	return out
}
