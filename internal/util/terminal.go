package util

// TruncateText shortens s to at most maxLen runes, marking the cut with an
// ellipsis. Non-positive widths leave s alone.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
