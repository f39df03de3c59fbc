// Package vin validates, normalizes, decodes and extracts Vehicle Identification
// Numbers. It has no I/O and no UI dependency; every function is safe for
// concurrent use.
package vin

import "strings"

// Length is the number of characters in a finalized VIN.
const Length = 17

// Source tells where the year/make/model of a VehicleInfo came from.
type Source string

const (
	SourceLocalHeuristic      Source = "LOCAL_HEURISTIC"
	SourceRemoteAuthoritative Source = "REMOTE_AUTHORITATIVE"
)

// ScanMethod records how the VIN was captured.
type ScanMethod string

const (
	ScanCamera ScanMethod = "CAMERA"
	ScanManual ScanMethod = "MANUAL"
)

// ParseScanMethod maps loose user input ("camera", "manual") to a ScanMethod.
// Unknown values fall back to ScanManual.
func ParseScanMethod(s string) ScanMethod {
	switch ScanMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case ScanCamera:
		return ScanCamera
	default:
		return ScanManual
	}
}

// ValidationResult lists every rule a candidate VIN violates.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// VehicleInfo is a decoded vehicle record. Empty strings mean "unknown".
type VehicleInfo struct {
	VIN       string     `json:"vin"`
	Year      string     `json:"year,omitempty"`
	Make      string     `json:"make,omitempty"`
	Model     string     `json:"model,omitempty"`
	Source    Source     `json:"source"`
	ScannedBy ScanMethod `json:"scannedBy"`
}

// ExtractionFailure explains an unsuccessful ExtractionResult.
type ExtractionFailure string

const (
	// FailureNotFound means the text was recognized but held no valid VIN.
	FailureNotFound ExtractionFailure = "not_found"
	// FailureOCR means the recognizer itself failed.
	FailureOCR ExtractionFailure = "ocr_failed"
)

// ExtractionResult is the outcome of pulling a VIN out of recognized text.
// Success implies VIN is set and passes Validate.
type ExtractionResult struct {
	Success    bool              `json:"success"`
	VIN        string            `json:"vin,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	Error      string            `json:"error,omitempty"`
	Reason     ExtractionFailure `json:"reason,omitempty"`
}
