// Package enrichment turns a validated VIN into a vehicle record: a local
// heuristic decode first, then an authoritative gateway answer merged on top
// when one is available.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vindiesel/vin-engine/internal/cache"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// ErrInvalidVIN is wrapped by every InvalidVINError.
var ErrInvalidVIN = errors.New("invalid vin")

// InvalidVINError carries the validation result for a rejected VIN.
type InvalidVINError struct {
	VIN        string
	Validation vin.ValidationResult
}

func (e *InvalidVINError) Error() string {
	return ErrInvalidVIN.Error() + " " + e.VIN + ": " + strings.Join(e.Validation.Errors, "; ")
}

func (e *InvalidVINError) Unwrap() error {
	return ErrInvalidVIN
}

// Result is the outcome of a decode.
type Result struct {
	Vehicle            vin.VehicleInfo `json:"vehicle"`
	Local              vin.VehicleInfo `json:"local"`
	Degraded           bool            `json:"degraded"`
	DegradedReason     string          `json:"degradedReason,omitempty"`
	Cached             bool            `json:"cached"`
	CheckDigitVerified bool            `json:"checkDigitVerified"`
}

// Config holds service settings.
type Config struct {
	RemoteTimeout time.Duration
	CacheTTL      time.Duration
}

// Service decodes VINs. It is safe for concurrent use.
type Service struct {
	gateway       vin.Gateway
	cache         cache.Client
	remoteTimeout time.Duration
	cacheTTL      time.Duration
	logger        *observability.Logger
	metrics       *observability.Metrics
	flight        singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. A nil gateway means offline mode; a nil cache
// disables caching.
func NewService(cfg Config, gateway vin.Gateway, c cache.Client, opts ...Option) *Service {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 8 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	s := &Service{
		gateway:       gateway,
		cache:         c,
		remoteTimeout: cfg.RemoteTimeout,
		cacheTTL:      cfg.CacheTTL,
		logger:        observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Online reports whether a gateway is configured.
func (s *Service) Online() bool {
	return s.gateway != nil
}

// DecodeLocal validates raw and returns the local heuristic decode only.
func (s *Service) DecodeLocal(raw string, method vin.ScanMethod) (Result, error) {
	v, err := s.validate(raw)
	if err != nil {
		return Result{}, err
	}

	local := vin.DecodeLocalAs(v, method)
	s.metrics.ObserveDecode(string(local.Source))
	return Result{
		Vehicle:            local,
		Local:              local,
		CheckDigitVerified: vin.HasValidCheckDigit(v),
	}, nil
}

// Decode validates raw, decodes it locally and merges the gateway answer.
// Gateway failures set Degraded and are never returned as errors.
func (s *Service) Decode(ctx context.Context, raw string, method vin.ScanMethod) (Result, error) {
	res, err := s.DecodeLocal(raw, method)
	if err != nil || s.gateway == nil {
		return res, err
	}

	remote, cached, remoteErr := s.lookup(ctx, res.Local.VIN)
	return s.merge(ctx, res, remote, cached, remoteErr), nil
}

func (s *Service) merge(ctx context.Context, res Result, remote vin.RemoteInfo, cached bool, remoteErr error) Result {
	merged, err := vin.MergeRemote(res.Local, remote, remoteErr)
	res.Vehicle = merged
	res.Cached = cached
	if err != nil {
		res.Degraded = true
		res.DegradedReason = string(vin.FailureKind(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.DegradedReason = string(vin.FailureUnreachable)
		}
		s.logger.WithContext(ctx).WithVIN(res.Local.VIN).Warn().Err(err).
			Str("reason", res.DegradedReason).Msg("serving local decode")
	}
	if merged.Source != res.Local.Source {
		s.metrics.ObserveDecode(string(merged.Source))
	}
	return res
}

// lookup returns the remote answer for v from the cache or the gateway.
// Concurrent lookups of the same VIN share one gateway call.
func (s *Service) lookup(ctx context.Context, v string) (vin.RemoteInfo, bool, error) {
	if info, ok := s.cached(ctx, v); ok {
		return info, true, nil
	}

	ch := s.flight.DoChan(v, func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.remoteTimeout)
		defer cancel()

		info, err := s.gateway.DecodeRemote(callCtx, v)
		if err != nil {
			return vin.RemoteInfo{}, err
		}
		s.store(callCtx, v, info)
		return info, nil
	})

	select {
	case <-ctx.Done():
		return vin.RemoteInfo{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return vin.RemoteInfo{}, false, r.Err
		}
		return r.Val.(vin.RemoteInfo), false, nil
	}
}

func (s *Service) cached(ctx context.Context, v string) (vin.RemoteInfo, bool) {
	if s.cache == nil {
		return vin.RemoteInfo{}, false
	}

	data, err := s.cache.Get(ctx, cache.DecodeKey(v))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("vin", v).Msg("cache read failed")
		}
		s.metrics.ObserveCache(false)
		return vin.RemoteInfo{}, false
	}

	var info vin.RemoteInfo
	if err := json.Unmarshal(data, &info); err != nil || info.Empty() {
		s.logger.Warn().Str("vin", v).Msg("discarding unreadable cache entry")
		s.metrics.ObserveCache(false)
		return vin.RemoteInfo{}, false
	}

	s.metrics.ObserveCache(true)
	return info, true
}

func (s *Service) store(ctx context.Context, v string, info vin.RemoteInfo) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.DecodeKey(v), data, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("vin", v).Msg("cache write failed")
	}
}

func (s *Service) validate(raw string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	res := vin.Validate(v)
	s.metrics.ObserveValidation(res.Valid)
	if !res.Valid {
		return "", &InvalidVINError{VIN: v, Validation: res}
	}
	return v, nil
}
