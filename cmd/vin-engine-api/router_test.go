package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindiesel/vin-engine/internal/cache"
	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

type noScan struct{}

func (noScan) ExtractVIN(ctx context.Context, imagePath string) vin.ExtractionResult {
	return vin.ExtractionResult{Error: vin.NotFoundMessage, Reason: vin.FailureNotFound}
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	c := cache.NewMemoryClient(10)
	t.Cleanup(func() { _ = c.Close() })

	metrics := observability.NewMetrics()
	svc := enrichment.NewService(enrichment.Config{}, nil, c, enrichment.WithMetrics(metrics))

	return NewRouter(cfg, Dependencies{
		Logger:    observability.NopLogger(),
		Metrics:   metrics,
		Decoder:   svc,
		Extractor: noScan{},
		Cache:     c,
		Version:   "test",
	})
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodPost, "/api/v1/vin/normalize", `{"input":"1hgbh"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/vin/validate", `{"vin":"1HGBH41JXMN109186"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/vin/extract", `{"text":"x"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/vin/decode", `{"vin":"1HGBH41JXMN109186"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/vin/decode", `{"vin":"1HGBH"}`, http.StatusUnprocessableEntity},
		{http.MethodGet, "/api/v1/vin/1HGBH41JXMN109186", "", http.StatusOK},
		{http.MethodPost, "/vin.v1.VINService/Validate", `{"vin":"1HGBH41JXMN109186"}`, http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vin/decode", strings.NewReader(`{"vin":"1HGBH41JXMN109186"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vin_engine_decodes_total")
}

func TestRouter_AuthProtectsAPIOnly(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKeys = []string{"secret"}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vin/1HGBH41JXMN109186", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/vin.v1.VINService/Validate", strings.NewReader(`{"vin":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/vin/1HGBH41JXMN109186", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
