package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// truncateEnd shortens s to at most limit runes, ending with an ellipsis
// when something was cut.
func truncateEnd(s string, limit int) string {
	switch {
	case limit <= 0:
		return ""
	case utf8.RuneCountInString(s) <= limit:
		return s
	case limit == 1:
		return "…"
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

// truncateMiddle keeps both ends of s, which is what matters in URLs.
func truncateMiddle(s string, limit int) string {
	n := utf8.RuneCountInString(s)
	if limit <= 0 {
		return ""
	}
	if n <= limit {
		return s
	}
	if limit < 3 {
		return truncateEnd(s, limit)
	}
	r := []rune(s)
	head := (limit - 1) / 2
	tail := limit - 1 - head
	return string(r[:head]) + "…" + string(r[n-tail:])
}

// singleLine collapses whitespace runs, including newlines, to one space.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stars draws a 0-5 rating.
func stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// sanitizeQuery trims and caps search input.
func sanitizeQuery(s string) string {
	s = singleLine(s)
	if utf8.RuneCountInString(s) > maxQueryLength {
		s = string([]rune(s)[:maxQueryLength])
	}
	return s
}

const maxQueryLength = 256
