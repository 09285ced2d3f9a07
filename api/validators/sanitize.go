package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits for shopper-supplied product fields, counted in runes like the
// validate:"max" tags on the request bodies.
const (
	MaxProductIDRunes   = 128
	MaxProductNameRunes = 256
)

// SanitizeText trims input, replaces invalid UTF-8, folds control characters and
// whitespace runs into single spaces and keeps at most maxRunes runes.
// maxRunes <= 0 disables the limit.
func SanitizeText(input string, maxRunes int) string {
	input = strings.ToValidUTF8(input, string(utf8.RuneError))

	var b strings.Builder
	b.Grow(len(input))
	space, n := false, 0
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if maxRunes > 0 && n+boolToInt(space)+1 > maxRunes {
			break
		}
		if space {
			b.WriteByte(' ')
			n++
			space = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
