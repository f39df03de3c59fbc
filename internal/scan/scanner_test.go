package scan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

type call struct {
	name string
	args []string
}

// stubRunner returns canned output keyed by whether the call asks for TSV.
type stubRunner struct {
	text   string
	tsv    string
	err    error
	tsvErr error
	calls  []call
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, call{name: name, args: args})
	if len(args) > 0 && args[len(args)-1] == "tsv" {
		if r.tsvErr != nil {
			return nil, []byte("tsv failed"), r.tsvErr
		}
		return []byte(r.tsv), nil, nil
	}
	if r.err != nil {
		return nil, []byte("Error opening data file"), r.err
	}
	return []byte(r.text), nil, nil
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t40\t12\t90.5\tVIN\n" +
	"5\t1\t1\t1\t1\t2\t60\t10\t200\t12\t80.5\t1HGBH41JXMN109186\n"

func TestTesseract_Recognize(t *testing.T) {
	runner := &stubRunner{text: "VIN 1HGBH41JXMN109186\n", tsv: sampleTSV}
	tess := NewTesseract(config.OCRConfig{
		Tesseract:     "/usr/bin/tesseract",
		Lang:          "eng",
		PSM:           6,
		TessdataDir:   "/data",
		TSVConfidence: true,
	}, runner)

	rec, err := tess.Recognize(context.Background(), "/tmp/door.jpg")
	require.NoError(t, err)
	assert.Equal(t, "VIN 1HGBH41JXMN109186\n", rec.Text)
	assert.InDelta(t, 85.5, rec.Confidence, 0.001)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "/usr/bin/tesseract", runner.calls[0].name)
	assert.Equal(t,
		[]string{"/tmp/door.jpg", "stdout", "-l", "eng", "--psm", "6", "--tessdata-dir", "/data"},
		runner.calls[0].args)
	assert.Equal(t, "tsv", runner.calls[1].args[len(runner.calls[1].args)-1])
}

func TestTesseract_TSVFailureKeepsText(t *testing.T) {
	runner := &stubRunner{text: "hello", tsvErr: errors.New("exit status 1")}
	tess := NewTesseract(config.OCRConfig{TSVConfidence: true}, runner)

	rec, err := tess.Recognize(context.Background(), "img.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Text)
	assert.Zero(t, rec.Confidence)
}

func TestTesseract_NoTSVPassWhenDisabled(t *testing.T) {
	runner := &stubRunner{text: "hello"}
	tess := NewTesseract(config.OCRConfig{}, runner)

	_, err := tess.Recognize(context.Background(), "img.png")
	require.NoError(t, err)
	assert.Len(t, runner.calls, 1)
	assert.Equal(t, "tesseract", runner.calls[0].name)
}

func TestTesseract_Errors(t *testing.T) {
	tess := NewTesseract(config.OCRConfig{}, &stubRunner{err: errors.New("exit status 1")})

	_, err := tess.Recognize(context.Background(), "img.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error opening data file")

	_, err = tess.Recognize(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyImagePath)
}

func TestMeanConfidence(t *testing.T) {
	assert.InDelta(t, 85.5, meanConfidence(sampleTSV), 0.001)
	assert.Zero(t, meanConfidence(""))
	assert.Zero(t, meanConfidence("level\tconf\ttext\n"))
}

type fakeRecognizer struct {
	rec Recognition
	err error
}

func (f fakeRecognizer) Recognize(ctx context.Context, imagePath string) (Recognition, error) {
	return f.rec, f.err
}

func TestScanner_ExtractVIN(t *testing.T) {
	tests := []struct {
		name       string
		recognizer fakeRecognizer
		want       vin.ExtractionResult
	}{
		{
			name:       "found with confidence",
			recognizer: fakeRecognizer{rec: Recognition{Text: "VIN: 1HGBH41JXMN109186", Confidence: 87}},
			want:       vin.ExtractionResult{Success: true, VIN: "1HGBH41JXMN109186", Confidence: ptr(87)},
		},
		{
			name:       "found after O correction",
			recognizer: fakeRecognizer{rec: Recognition{Text: "1HGBH41JXMN1O9186"}},
			want:       vin.ExtractionResult{Success: true, VIN: "1HGBH41JXMN109186"},
		},
		{
			name:       "text without vin",
			recognizer: fakeRecognizer{rec: Recognition{Text: "TIRE PRESSURE 35 PSI", Confidence: 90}},
			want:       vin.ExtractionResult{Error: vin.NotFoundMessage, Reason: vin.FailureNotFound},
		},
		{
			name:       "recognizer failure",
			recognizer: fakeRecognizer{err: errors.New("tesseract: exit status 1")},
			want:       vin.ExtractionResult{Error: "tesseract: exit status 1", Reason: vin.FailureOCR},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(tt.recognizer, nil, nil)
			assert.Equal(t, tt.want, s.ExtractVIN(context.Background(), "img.jpg"))
		})
	}
}

func TestScanner_ExtractVINFromText(t *testing.T) {
	s := NewScanner(nil, nil, nil)

	res := s.ExtractVINFromText(strings.ToLower("vin: 1hgbh41jxmn109186"), ptr(150))
	assert.True(t, res.Success)
	assert.Equal(t, 100.0, *res.Confidence)
}

func ptr(f float64) *float64 { return &f }
