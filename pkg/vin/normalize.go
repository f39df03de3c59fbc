package vin

import (
	"strings"
)

// ocrConfusions maps letters that are never legal in a VIN to the digit they are
// usually misread as.
var ocrConfusions = map[rune]rune{
	'O': '0',
	'I': '1',
	'Q': '0',
}

// Normalize turns raw keyboard or OCR input into an uppercase VIN candidate.
// O, I and Q become 0, 1 and 0; anything outside the VIN alphabet is dropped and
// the result is cut to 17 characters. It is total and idempotent, so callers can
// run it on every keystroke.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(Length)
	n := 0
	for _, r := range strings.ToUpper(raw) {
		if fixed, ok := ocrConfusions[r]; ok {
			r = fixed
		}
		if !isVINChar(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n == Length {
			break
		}
	}
	return b.String()
}

// correctConfusions applies the OCR substitutions without dropping anything.
func correctConfusions(s string) string {
	return strings.Map(func(r rune) rune {
		if fixed, ok := ocrConfusions[r]; ok {
			return fixed
		}
		return r
	}, s)
}

// isVINChar reports whether r is in [A-HJ-NPR-Z0-9]. Uppercase only.
func isVINChar(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z':
		return r != 'I' && r != 'O' && r != 'Q'
	default:
		return false
	}
}
