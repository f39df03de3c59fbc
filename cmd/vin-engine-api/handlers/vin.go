// Package handlers provides HTTP handlers for the VIN engine API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// Decoder is the subset of enrichment.Service the handlers need.
type Decoder interface {
	Decode(ctx context.Context, raw string, method vin.ScanMethod) (enrichment.Result, error)
	DecodeLocal(raw string, method vin.ScanMethod) (enrichment.Result, error)
}

// VINHandler handles normalize, validate, extract and decode requests.
type VINHandler struct {
	logger  *observability.Logger
	decoder Decoder
	metrics *observability.Metrics
}

// NewVINHandler creates a new VIN handler.
func NewVINHandler(logger *observability.Logger, decoder Decoder, metrics *observability.Metrics) *VINHandler {
	return &VINHandler{
		logger:  logger,
		decoder: decoder,
		metrics: metrics,
	}
}

// NormalizeRequestDTO is the body of POST /vin/normalize.
type NormalizeRequestDTO struct {
	Input string `json:"input"`
}

// NormalizeResponseDTO reports the cleaned input.
type NormalizeResponseDTO struct {
	VIN       string `json:"vin"`
	Plausible bool   `json:"plausible"`
	Complete  bool   `json:"complete"`
}

// ValidateRequestDTO is the body of POST /vin/validate.
type ValidateRequestDTO struct {
	VIN string `json:"vin"`
}

// ValidateResponseDTO carries the validation result.
type ValidateResponseDTO struct {
	VIN                string   `json:"vin"`
	Valid              bool     `json:"valid"`
	Errors             []string `json:"errors"`
	CheckDigitVerified bool     `json:"checkDigitVerified"`
}

// ExtractRequestDTO is the body of POST /vin/extract.
type ExtractRequestDTO struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// DecodeRequestDTO is the body of POST /vin/decode.
type DecodeRequestDTO struct {
	VIN       string `json:"vin"`
	ScannedBy string `json:"scannedBy,omitempty"`
	Remote    *bool  `json:"remote,omitempty"`
}

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Detail  string   `json:"detail,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Normalize handles POST /api/v1/vin/normalize.
func (h *VINHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	n := vin.Normalize(req.Input)
	writeJSON(w, http.StatusOK, NormalizeResponseDTO{
		VIN:       n,
		Plausible: vin.IsPlausiblePrefix(n),
		Complete:  len(n) == vin.Length,
	})
}

// Validate handles POST /api/v1/vin/validate.
func (h *VINHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	v := strings.ToUpper(strings.TrimSpace(req.VIN))
	res := vin.Validate(v)
	h.metrics.ObserveValidation(res.Valid)

	writeJSON(w, http.StatusOK, ValidateResponseDTO{
		VIN:                v,
		Valid:              res.Valid,
		Errors:             res.Errors,
		CheckDigitVerified: res.Valid && vin.HasValidCheckDigit(v),
	})
}

// Extract handles POST /api/v1/vin/extract.
func (h *VINHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	res := vin.FindVINResult(req.Text, req.Confidence)
	if res.Success {
		h.metrics.ObserveExtraction("found")
	} else {
		h.metrics.ObserveExtraction(string(res.Reason))
	}
	writeJSON(w, http.StatusOK, res)
}

// Decode handles POST /api/v1/vin/decode. Remote lookup is on unless the
// body sets "remote": false.
func (h *VINHandler) Decode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.VIN) == "" {
		writeError(w, http.StatusBadRequest, "vin is required", "")
		return
	}

	remote := req.Remote == nil || *req.Remote
	h.decode(w, r, req.VIN, vin.ParseScanMethod(req.ScannedBy), remote)
}

// Get handles GET /api/v1/vin/{vin}.
func (h *VINHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.decode(w, r, chi.URLParam(r, "vin"), vin.ParseScanMethod(r.URL.Query().Get("scannedBy")), true)
}

func (h *VINHandler) decode(w http.ResponseWriter, r *http.Request, raw string, method vin.ScanMethod, remote bool) {
	var (
		res enrichment.Result
		err error
	)
	if remote {
		res, err = h.decoder.Decode(r.Context(), raw, method)
	} else {
		res, err = h.decoder.DecodeLocal(raw, method)
	}
	if err != nil {
		writeDecodeError(w, h.logger.WithContext(r.Context()), err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeDecodeError(w http.ResponseWriter, logger *observability.Logger, err error) {
	var invalid *enrichment.InvalidVINError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_vin",
			Message: "VIN failed validation",
			Errors:  invalid.Validation.Errors,
		})
		return
	}

	logger.Error().Err(err).Msg("decode failed")
	writeError(w, http.StatusInternalServerError, "decode failed", err.Error())
}

// decodeBody parses a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: message,
		Detail:  detail,
	})
}
