package vin

import (
	"fmt"
	"strings"
)

// YearCodes are the characters allowed at position 10.
const YearCodes = "ABCDEFGHJKLMNPRSTVWXY123456789"

const (
	msgCharset    = "Only letters A-Z (except I,O,Q) and numbers 0-9 allowed"
	msgCheckDigit = "Position 9 (check digit) must be 0-9 or X"
	msgYearCode   = "Position 10 (year code) is invalid"
)

// Validate checks s against the VIN format rules and reports every violation,
// not just the first. Letter checks are case-insensitive. It never fails; the
// result carries the problems for display.
func Validate(s string) ValidationResult {
	runes := []rune(s)
	errs := make([]string, 0, 5)

	if len(runes) != Length {
		errs = append(errs, fmt.Sprintf("Length must be %d (currently %d)", Length, len(runes)))
	}

	if bad := forbiddenLetters(runes); len(bad) > 0 {
		errs = append(errs, fmt.Sprintf("Contains invalid letters: %s (use 0 not O)", strings.Join(bad, ", ")))
	}

	if !charsetOK(runes) {
		errs = append(errs, msgCharset)
	}

	if len(runes) >= 9 && !isCheckDigitChar(runes[8]) {
		errs = append(errs, msgCheckDigit)
	}

	if len(runes) >= 10 && !isYearCode(runes[9]) {
		errs = append(errs, msgYearCode)
	}

	return ValidationResult{
		Valid:  len(errs) == 0 && len(runes) == Length,
		Errors: errs,
	}
}

// IsValid is shorthand for Validate(s).Valid.
func IsValid(s string) bool {
	return Validate(s).Valid
}

// IsPlausiblePrefix is the permissive check used while a VIN is still being
// typed: at most 17 characters, no I/O/Q, nothing outside the VIN alphabet.
// Position rules are left for submission.
func IsPlausiblePrefix(s string) bool {
	runes := []rune(s)
	if len(runes) > Length {
		return false
	}
	return len(forbiddenLetters(runes)) == 0 && charsetOK(runes)
}

func forbiddenLetters(runes []rune) []string {
	var bad []string
	for _, r := range runes {
		switch upperASCII(r) {
		case 'I', 'O', 'Q':
			bad = append(bad, string(r))
		}
	}
	return bad
}

func charsetOK(runes []rune) bool {
	for _, r := range runes {
		if !isVINChar(upperASCII(r)) {
			return false
		}
	}
	return true
}

func isCheckDigitChar(r rune) bool {
	r = upperASCII(r)
	return (r >= '0' && r <= '9') || r == 'X'
}

func isYearCode(r rune) bool {
	return strings.ContainsRune(YearCodes, upperASCII(r))
}

// upperASCII folds a-z only; other scripts never count as VIN characters.
func upperASCII(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
