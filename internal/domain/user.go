package domain

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxDisplayNameLen = 32

var ErrDisplayNameEmpty = errors.New("display name empty")

// SanitizeDisplayName trims raw, drops control characters and cuts the
// result to MaxDisplayNameLen bytes without splitting a rune.
func SanitizeDisplayName(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsControl(r) {
			continue
		}
		if b.Len()+utf8.RuneLen(r) > MaxDisplayNameLen {
			break
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "", ErrDisplayNameEmpty
	}
	return b.String(), nil
}

// DefaultDisplayName is used until a client picks its own name.
func DefaultDisplayName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "Guest " + short
}
