package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// Extractor pulls a VIN out of an image on disk.
type Extractor interface {
	ExtractVIN(ctx context.Context, imagePath string) vin.ExtractionResult
}

// ScanHandler handles image uploads.
type ScanHandler struct {
	logger    *observability.Logger
	extractor Extractor
	decoder   Decoder
	maxBytes  int64
	tempDir   string
}

// NewScanHandler creates a new scan handler. Uploads larger than maxBytes
// are rejected.
func NewScanHandler(logger *observability.Logger, extractor Extractor, decoder Decoder, maxBytes int64) *ScanHandler {
	return &ScanHandler{
		logger:    logger,
		extractor: extractor,
		decoder:   decoder,
		maxBytes:  maxBytes,
		tempDir:   os.TempDir(),
	}
}

// ScanResponseDTO is the result of POST /vin/scan.
type ScanResponseDTO struct {
	Extraction vin.ExtractionResult `json:"extraction"`
	Decode     *enrichment.Result   `json:"decode,omitempty"`
}

// Scan handles POST /api/v1/vin/scan with a multipart "image" field.
// A found VIN is decoded as a camera capture unless ?decode=false.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required", err.Error())
		return
	}
	defer file.Close()

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}
	defer os.Remove(path)

	resp := ScanResponseDTO{Extraction: h.extractor.ExtractVIN(r.Context(), path)}
	if !resp.Extraction.Success {
		status := http.StatusOK
		if resp.Extraction.Reason == vin.FailureOCR {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}

	if r.URL.Query().Get("decode") != "false" {
		res, err := h.decoder.Decode(r.Context(), resp.Extraction.VIN, vin.ScanCamera)
		if err != nil {
			writeDecodeError(w, h.logger.WithContext(r.Context()), err)
			return
		}
		resp.Decode = &res
	}

	writeJSON(w, http.StatusOK, resp)
}

// saveUpload copies the upload to a uniquely named temp file, keeping the
// extension so tesseract can sniff the format.
func (h *ScanHandler) saveUpload(src io.Reader, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	path := filepath.Join(h.tempDir, "vin-scan-"+uuid.NewString()+ext)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
