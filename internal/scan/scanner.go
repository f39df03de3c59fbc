// Package scan extracts VINs from photographs using an OCR recognizer.
package scan

import (
	"context"

	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// Recognition is the raw OCR output for one image.
type Recognition struct {
	Text string
	// Confidence is 0..100; 0 when the recognizer does not report one.
	Confidence float64
}

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (Recognition, error)
}

// Scanner pairs a Recognizer with VIN extraction.
type Scanner struct {
	recognizer Recognizer
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewScanner creates a Scanner. logger and metrics may be nil.
func NewScanner(r Recognizer, logger *observability.Logger, metrics *observability.Metrics) *Scanner {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Scanner{recognizer: r, logger: logger, metrics: metrics}
}

// ExtractVIN recognizes imagePath and returns the first valid VIN in it.
func (s *Scanner) ExtractVIN(ctx context.Context, imagePath string) vin.ExtractionResult {
	rec, err := s.recognizer.Recognize(ctx, imagePath)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("image", imagePath).Msg("ocr failed")
		s.metrics.ObserveExtraction(string(vin.FailureOCR))
		return vin.ExtractionResult{
			Success: false,
			Error:   err.Error(),
			Reason:  vin.FailureOCR,
		}
	}

	var conf *float64
	if rec.Confidence > 0 {
		c := rec.Confidence
		conf = &c
	}
	res := s.ExtractVINFromText(rec.Text, conf)
	s.logger.WithContext(ctx).Debug().
		Str("image", imagePath).
		Int("text_len", len(rec.Text)).
		Bool("found", res.Success).
		Msg("scan complete")
	return res
}

// ExtractVINFromText runs extraction on text recognized elsewhere.
func (s *Scanner) ExtractVINFromText(text string, confidence *float64) vin.ExtractionResult {
	res := vin.FindVINResult(text, confidence)
	if res.Success {
		s.metrics.ObserveExtraction("found")
	} else {
		s.metrics.ObserveExtraction(string(res.Reason))
	}
	return res
}
