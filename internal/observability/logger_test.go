package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "vin-test"})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).WithVIN("1HGBH41J8MN109186").Info().Str("source", "LOCAL_HEURISTIC").Msg("decoded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "vin-test", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "1HGBH41J8MN109186", entry["vin"])
	assert.Equal(t, "LOCAL_HEURISTIC", entry["source"])
	assert.Equal(t, "decoded", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("nonsense").String())
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecode("REMOTE_AUTHORITATIVE")
	m.ObserveGatewayFailure("unreachable")
	m.ObserveCache(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `vin_engine_decodes_total{source="REMOTE_AUTHORITATIVE"} 1`)
	assert.Contains(t, body, `vin_engine_gateway_failures_total{kind="unreachable"} 1`)
	assert.Contains(t, body, `vin_engine_cache_lookups_total{result="hit"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecode("x")
		m.ObserveCache(false)
		m.ObserveValidation(true)
	})
}
