package validators

import (
	"strings"
	"unicode"
)

// SanitizeString collapses whitespace, drops control characters and cuts the
// result to maxLen runes. maxLen <= 0 keeps the full length.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	runes, pendingSpace := 0, false
	for _, c := range input {
		if maxLen > 0 && runes >= maxLen {
			break
		}
		switch {
		case unicode.IsSpace(c):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(c):
			continue
		}
		if pendingSpace {
			if maxLen > 0 && runes+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(c)
		runes++
	}
	return b.String()
}
