package utils

import (
	"fmt"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens text to fit within maxWidth terminal cells,
// accounting for double-width Unicode characters. Truncated text ends
// in an ellipsis.
func Truncate(text string, maxWidth int) string {
	if runewidth.StringWidth(text) <= maxWidth {
		return text
	}
	if maxWidth <= 1 {
		return "…"
	}

	width := 0
	for i, r := range text {
		width += runewidth.RuneWidth(r)
		if width > maxWidth-1 {
			return text[:i] + "…"
		}
	}
	return text
}

// FormatClock renders seconds as a playback clock: m:ss below an
// hour, h:mm:ss from an hour up.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
