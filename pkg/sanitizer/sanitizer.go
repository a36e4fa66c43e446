// Package sanitizer normalizes free-text input before validation and
// storage. All functions are idempotent and never return errors; invalid
// input degrades to an empty string.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims leading/trailing whitespace and collapses runs
// of internal whitespace to a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeRoomName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}

// NormalizePurpose cleans the optional free-text purpose of a booking.
// Control characters are stripped so log lines and stored documents stay
// single-line.
func NormalizePurpose(purpose string) string {
	var b strings.Builder
	for _, r := range purpose {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return TrimAndNormalize(b.String())
}
