package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the VIN engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Decodes          *prometheus.CounterVec
	GatewayFailures  *prometheus.CounterVec
	GatewayLatency   prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	Extractions      *prometheus.CounterVec
	ValidationResult *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vin_engine_decodes_total",
			Help: "Decoded VINs by the source of the returned record",
		}, []string{"source"}),
		GatewayFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vin_engine_gateway_failures_total",
			Help: "Remote decode failures by kind",
		}, []string{"kind"}),
		GatewayLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vin_engine_gateway_latency_seconds",
			Help:    "Latency of remote decode calls",
			Buckets: prometheus.DefBuckets,
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vin_engine_cache_lookups_total",
			Help: "Decode cache lookups by result",
		}, []string{"result"}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vin_engine_extractions_total",
			Help: "VIN extraction attempts by outcome",
		}, []string{"outcome"}),
		ValidationResult: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vin_engine_validations_total",
			Help: "Submitted VIN validations by result",
		}, []string{"valid"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveDecode(source string) {
	if m == nil {
		return
	}
	m.Decodes.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveGatewayFailure(kind string) {
	if m == nil {
		return
	}
	m.GatewayFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveGatewayLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveValidation(valid bool) {
	if m == nil {
		return
	}
	label := "false"
	if valid {
		label = "true"
	}
	m.ValidationResult.WithLabelValues(label).Inc()
}
