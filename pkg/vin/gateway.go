package vin

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is an authoritative registry that decodes a syntactically valid VIN.
// Implementations return a *GatewayError on failure.
type Gateway interface {
	DecodeRemote(ctx context.Context, vin string) (RemoteInfo, error)
}

// RemoteInfo is what a Gateway knows about a VIN. Empty fields are unknown.
type RemoteInfo struct {
	Year  string `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
}

// Empty reports whether no field is set.
func (r RemoteInfo) Empty() bool {
	return r.Year == "" && r.Make == "" && r.Model == ""
}

// GatewayFailure classifies gateway errors.
type GatewayFailure string

const (
	FailureUnreachable       GatewayFailure = "unreachable"
	FailureUnknownVIN        GatewayFailure = "unknown_vin"
	FailureService           GatewayFailure = "service_error"
	FailureMalformedResponse GatewayFailure = "malformed_response"
)

// Sentinel errors matched by GatewayError.Is.
var (
	ErrGatewayUnreachable = errors.New("vin decode service unreachable")
	ErrUnknownVIN         = errors.New("vin not known to decode service")
	ErrGatewayService     = errors.New("vin decode service error")
	ErrMalformedResponse  = errors.New("malformed vin decode response")
)

// GatewayError is a typed, non-fatal failure from a Gateway.
type GatewayError struct {
	Kind GatewayFailure
	VIN  string
	Err  error
}

// NewGatewayError builds a GatewayError.
func NewGatewayError(kind GatewayFailure, vin string, err error) *GatewayError {
	return &GatewayError{Kind: kind, VIN: vin, Err: err}
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] decode %s: %v", e.Kind, e.VIN, e.Err)
	}
	return fmt.Sprintf("[%s] decode %s", e.Kind, e.VIN)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel for e.Kind.
func (e *GatewayError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k GatewayFailure) sentinel() error {
	switch k {
	case FailureUnreachable:
		return ErrGatewayUnreachable
	case FailureUnknownVIN:
		return ErrUnknownVIN
	case FailureService:
		return ErrGatewayService
	case FailureMalformedResponse:
		return ErrMalformedResponse
	default:
		return nil
	}
}

// FailureKind returns the GatewayFailure carried by err, or FailureService for
// errors that did not come from a Gateway.
func FailureKind(err error) GatewayFailure {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return FailureService
}
