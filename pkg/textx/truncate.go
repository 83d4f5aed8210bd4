// Package textx holds small text helpers shared by the tools.
package textx

import "unicode/utf8"

// Truncate cuts s to n runes and marks the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
