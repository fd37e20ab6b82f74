// Package telemetry wires a private Prometheus registry (C11) covering the
// engine's health signals: source cooling state, cache hit/miss ratios,
// provider fetch latency, and bridge connection/message counts. log/slog
// remains the sole logging mechanism throughout the engine; this package
// only concerns itself with numeric metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge/histogram the engine's components
// publish to, registered on a private registry rather than the global
// default so tests can construct independent instances.
type Metrics struct {
	registry *prometheus.Registry

	SourceCooling      *prometheus.GaugeVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	ProviderFetchSecs  *prometheus.HistogramVec
	BridgeConnections  prometheus.Gauge
	BridgeMessagesIn   prometheus.Counter
	BridgeMessagesOut  prometheus.Counter
}

// New constructs and registers every metric on a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SourceCooling: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "syncstage",
			Subsystem: "source",
			Name:      "cooling",
			Help:      "1 if the source is currently in backoff cooldown, 0 otherwise.",
		}, []string{"source_id"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncstage",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups served without invoking the fetch function.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncstage",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that invoked the fetch function.",
		}, []string{"cache"}),
		ProviderFetchSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncstage",
			Subsystem: "provider",
			Name:      "fetch_seconds",
			Help:      "Provider fetch/search latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "provider_id"}),
		BridgeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncstage",
			Subsystem: "bridge",
			Name:      "connections",
			Help:      "Currently open Spicetify bridge WebSocket connections.",
		}),
		BridgeMessagesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncstage",
			Subsystem: "bridge",
			Name:      "messages_in_total",
			Help:      "Messages received from Spicetify bridge connections.",
		}),
		BridgeMessagesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "syncstage",
			Subsystem: "bridge",
			Name:      "messages_out_total",
			Help:      "Messages sent to Spicetify bridge connections.",
		}),
	}

	reg.MustRegister(
		m.SourceCooling,
		m.CacheHits,
		m.CacheMisses,
		m.ProviderFetchSecs,
		m.BridgeConnections,
		m.BridgeMessagesIn,
		m.BridgeMessagesOut,
	)
	return m
}

// Handler returns the /metrics HTTP handler serving this registry's
// Prometheus text exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
