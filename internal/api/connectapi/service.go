// Package connectapi exposes VIN operations as a Connect service
// (vin.v1.VINService) speaking JSON.
package connectapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// Procedure names.
const (
	ServiceName       = "vin.v1.VINService"
	ValidateProcedure = "/" + ServiceName + "/Validate"
	DecodeProcedure   = "/" + ServiceName + "/Decode"
	ExtractProcedure  = "/" + ServiceName + "/Extract"
)

// Decoder is the subset of enrichment.Service the API needs.
type Decoder interface {
	Decode(ctx context.Context, raw string, method vin.ScanMethod) (enrichment.Result, error)
	DecodeLocal(raw string, method vin.ScanMethod) (enrichment.Result, error)
}

// ValidateRequest represents the Validate request message.
type ValidateRequest struct {
	VIN string `json:"vin"`
}

// ValidateResponse represents the Validate response message.
type ValidateResponse struct {
	VIN                string   `json:"vin"`
	Valid              bool     `json:"valid"`
	Errors             []string `json:"errors"`
	CheckDigitVerified bool     `json:"check_digit_verified"`
}

// DecodeRequest represents the Decode request message.
type DecodeRequest struct {
	VIN       string `json:"vin"`
	ScannedBy string `json:"scanned_by,omitempty"`
	Remote    bool   `json:"remote,omitempty"`
}

// DecodeResponse represents the Decode response message.
type DecodeResponse struct {
	Vehicle            vin.VehicleInfo `json:"vehicle"`
	Degraded           bool            `json:"degraded"`
	DegradedReason     string          `json:"degraded_reason,omitempty"`
	Cached             bool            `json:"cached"`
	CheckDigitVerified bool            `json:"check_digit_verified"`
}

// ExtractRequest represents the Extract request message.
type ExtractRequest struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ExtractResponse represents the Extract response message.
type ExtractResponse struct {
	Result vin.ExtractionResult `json:"result"`
}

// VINService implements vin.v1.VINService.
type VINService struct {
	decoder Decoder
	logger  *observability.Logger
}

// NewVINService creates a new VIN service.
func NewVINService(decoder Decoder, logger *observability.Logger) *VINService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &VINService{decoder: decoder, logger: logger}
}

// Validate checks a VIN without decoding it.
func (s *VINService) Validate(ctx context.Context, req *connect.Request[ValidateRequest]) (*connect.Response[ValidateResponse], error) {
	v := strings.ToUpper(strings.TrimSpace(req.Msg.VIN))
	if v == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("vin is required"))
	}

	res := vin.Validate(v)
	return connect.NewResponse(&ValidateResponse{
		VIN:                v,
		Valid:              res.Valid,
		Errors:             res.Errors,
		CheckDigitVerified: res.Valid && vin.HasValidCheckDigit(v),
	}), nil
}

// Decode decodes a VIN, consulting the remote registry when Remote is set.
func (s *VINService) Decode(ctx context.Context, req *connect.Request[DecodeRequest]) (*connect.Response[DecodeResponse], error) {
	method := vin.ParseScanMethod(req.Msg.ScannedBy)

	var (
		res enrichment.Result
		err error
	)
	if req.Msg.Remote {
		res, err = s.decoder.Decode(ctx, req.Msg.VIN, method)
	} else {
		res, err = s.decoder.DecodeLocal(req.Msg.VIN, method)
	}
	if err != nil {
		var invalid *enrichment.InvalidVINError
		if errors.As(err, &invalid) {
			cerr := connect.NewError(connect.CodeInvalidArgument, err)
			cerr.Meta().Set("X-Validation-Errors", strings.Join(invalid.Validation.Errors, "; "))
			return nil, cerr
		}
		s.logger.WithContext(ctx).Error().Err(err).Msg("connect decode failed")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&DecodeResponse{
		Vehicle:            res.Vehicle,
		Degraded:           res.Degraded,
		DegradedReason:     res.DegradedReason,
		Cached:             res.Cached,
		CheckDigitVerified: res.CheckDigitVerified,
	}), nil
}

// Extract finds a VIN in recognized text.
func (s *VINService) Extract(ctx context.Context, req *connect.Request[ExtractRequest]) (*connect.Response[ExtractResponse], error) {
	return connect.NewResponse(&ExtractResponse{
		Result: vin.FindVINResult(req.Msg.Text, req.Msg.Confidence),
	}), nil
}

// Handlers returns the service's procedures keyed by path.
func (s *VINService) Handlers(opts ...connect.HandlerOption) map[string]http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	return map[string]http.Handler{
		ValidateProcedure: connect.NewUnaryHandler(ValidateProcedure, s.Validate, opts...),
		DecodeProcedure:   connect.NewUnaryHandler(DecodeProcedure, s.Decode, opts...),
		ExtractProcedure:  connect.NewUnaryHandler(ExtractProcedure, s.Extract, opts...),
	}
}
