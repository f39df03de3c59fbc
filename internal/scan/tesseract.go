package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vindiesel/vin-engine/internal/config"
)

// ErrEmptyImagePath is returned when Recognize is called without a path.
var ErrEmptyImagePath = errors.New("scan: empty image path")

// Tesseract recognizes text by shelling out to the tesseract CLI.
type Tesseract struct {
	cfg    config.OCRConfig
	runner Runner
}

// NewTesseract builds a Tesseract recognizer. A nil runner uses ExecRunner.
func NewTesseract(cfg config.OCRConfig, runner Runner) *Tesseract {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tesseract{cfg: cfg, runner: runner}
}

// Recognize runs tesseract on imagePath. Confidence is the mean word
// confidence from a TSV pass when enabled, else 0.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (Recognition, error) {
	if imagePath == "" {
		return Recognition{}, ErrEmptyImagePath
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--tessdata-dir D]
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.args(imagePath)...)
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	rec := Recognition{Text: string(out)}
	if t.cfg.TSVConfidence {
		// Confidence is best effort; a failed TSV pass keeps the text.
		if conf, err := t.tsvConfidence(ctx, imagePath); err == nil {
			rec.Confidence = conf
		}
	}
	return rec, nil
}

func (t *Tesseract) args(imagePath string, extra ...string) []string {
	args := []string{imagePath, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, extra...)
}

// tsvConfidence returns the mean word confidence (0..100) from tesseract TSV output.
func (t *Tesseract) tsvConfidence(ctx context.Context, imagePath string) (float64, error) {
	out, _, err := t.runner.Run(ctx, t.cfg.Tesseract, t.args(imagePath, "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w", err)
	}
	return meanConfidence(string(out)), nil
}

// meanConfidence averages the conf column over recognized words, skipping
// the -1 rows tesseract emits for blocks and lines.
func meanConfidence(tsv string) float64 {
	lines := strings.Split(tsv, "\n")
	if len(lines) == 0 {
		return 0
	}

	confCol, textCol := 10, 11
	for i, h := range strings.Split(strings.TrimSpace(lines[0]), "\t") {
		switch h {
		case "conf":
			confCol = i
		case "text":
			textCol = i
		}
	}

	var sum, n float64
	for _, ln := range lines[1:] {
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) <= confCol || len(cols) <= textCol {
			continue
		}
		if strings.TrimSpace(cols[textCol]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(cols[confCol], 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
