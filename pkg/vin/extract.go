package vin

import (
	"regexp"
	"strings"
	"unicode"
)

// NotFoundMessage is reported when recognized text holds no valid VIN.
const NotFoundMessage = "No valid VIN found in image. Please ensure the VIN is clearly visible."

var reCandidate = regexp.MustCompile(`[A-HJ-NPR-Z0-9]{17}`)

// FindVIN looks for a VIN in a block of OCR text. Whitespace is removed first
// and the text is uppercased. A strict scan runs before the O/I/Q correction so
// an already-clean VIN is never altered; each pass takes its first 17-character
// match and keeps it only if it passes Validate.
//
// ok is false when nothing was found. That is an expected outcome, not an error.
func FindVIN(text string) (vin string, ok bool) {
	clean := strings.ToUpper(stripSpace(text))
	if clean == "" {
		return "", false
	}

	if c := reCandidate.FindString(clean); c != "" && IsValid(c) {
		return c, true
	}

	if c := reCandidate.FindString(correctConfusions(clean)); c != "" && IsValid(c) {
		return c, true
	}

	return "", false
}

// FindVINResult wraps FindVIN for callers that carry an OCR confidence.
// confidence may be nil; otherwise it is clamped to [0,100].
func FindVINResult(text string, confidence *float64) ExtractionResult {
	v, ok := FindVIN(text)
	if !ok {
		return ExtractionResult{
			Success: false,
			Error:   NotFoundMessage,
			Reason:  FailureNotFound,
		}
	}
	return ExtractionResult{
		Success:    true,
		VIN:        v,
		Confidence: clampConfidence(confidence),
	}
}

func clampConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	switch {
	case v < 0:
		v = 0
	case v > 100:
		v = 100
	}
	return &v
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
