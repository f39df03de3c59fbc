// Package nhtsa implements vin.Gateway against the NHTSA vPIC decode API.
package nhtsa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

const (
	// DefaultBaseURL is the public vPIC API root.
	DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api"

	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "vin-engine/1.0"
	maxBodyBytes     = 1 << 20
)

// ErrInvalidVIN is returned before any request when the VIN fails validation.
var ErrInvalidVIN = errors.New("nhtsa: invalid vin")

// Config holds client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	Retry      RetryConfig
}

// Client decodes VINs with the vPIC decodevin endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	retry      RetryConfig
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *observability.Logger
	metrics    *observability.Metrics
}

var _ vin.Gateway = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records gateway latency and failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a new vPIC client.
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	retry := cfg.Retry
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = DefaultRetryConfig().InitialBackoff
	}
	if retry.MaxBackoff <= 0 {
		retry.MaxBackoff = DefaultRetryConfig().MaxBackoff
	}

	c := &Client{
		baseURL:    baseURL,
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		retry:      retry,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("github.com/vindiesel/vin-engine/internal/nhtsa"),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// decodeResponse mirrors the subset of the vPIC payload we read.
type decodeResponse struct {
	Count          int            `json:"Count"`
	Message        string         `json:"Message"`
	SearchCriteria string         `json:"SearchCriteria"`
	Results        []decodeResult `json:"Results"`
}

type decodeResult struct {
	Value      *string `json:"Value"`
	ValueID    *string `json:"ValueId"`
	Variable   string  `json:"Variable"`
	VariableID int     `json:"VariableId"`
}

// DecodeRemote looks up vin in vPIC. Failures are *vin.GatewayError.
func (c *Client) DecodeRemote(ctx context.Context, v string) (vin.RemoteInfo, error) {
	ctx, span := c.tracer.Start(ctx, "nhtsa.DecodeVIN", trace.WithAttributes(attribute.String("vin", v)))
	defer span.End()

	if res := vin.Validate(v); !res.Valid {
		err := fmt.Errorf("%w: %s", ErrInvalidVIN, strings.Join(res.Errors, "; "))
		span.SetStatus(codes.Error, err.Error())
		return vin.RemoteInfo{}, err
	}

	start := time.Now()
	info, err := c.decode(ctx, v)
	c.metrics.ObserveGatewayLatency(time.Since(start))

	log := c.logger.WithContext(ctx).WithVIN(v)
	if err != nil {
		kind := vin.FailureKind(err)
		c.metrics.ObserveGatewayFailure(string(kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		log.Warn().Err(err).Str("kind", string(kind)).Dur("elapsed", time.Since(start)).Msg("remote decode failed")
		return vin.RemoteInfo{}, err
	}

	span.SetAttributes(
		attribute.String("vehicle.year", info.Year),
		attribute.String("vehicle.make", info.Make),
		attribute.String("vehicle.model", info.Model),
	)
	log.Debug().Str("year", info.Year).Str("make", info.Make).Str("model", info.Model).
		Dur("elapsed", time.Since(start)).Msg("remote decode succeeded")
	return info, nil
}

func (c *Client) decode(ctx context.Context, v string) (vin.RemoteInfo, error) {
	endpoint := fmt.Sprintf("%s/vehicles/decodevin/%s?format=json", c.baseURL, url.PathEscape(v))

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureUnreachable, v, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureUnreachable, v, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureService, v,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	return parseDecodeResponse(v, body)
}

func parseDecodeResponse(v string, body []byte) (vin.RemoteInfo, error) {
	var payload decodeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureMalformedResponse, v, err)
	}
	if payload.Results == nil {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureMalformedResponse, v, errors.New("missing Results"))
	}

	var info vin.RemoteInfo
	for _, r := range payload.Results {
		val := presentValue(r.Value)
		if val == "" {
			continue
		}
		switch r.Variable {
		case "Model Year":
			info.Year = val
		case "Make":
			info.Make = val
		case "Model":
			info.Model = val
		}
	}

	if info.Empty() {
		return vin.RemoteInfo{}, vin.NewGatewayError(vin.FailureUnknownVIN, v, errors.New("no year, make or model in response"))
	}
	return info, nil
}

// presentValue returns the trimmed value, or "" for the placeholders vPIC
// uses when it knows nothing.
func presentValue(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	switch s {
	case "0", "Not Applicable":
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
