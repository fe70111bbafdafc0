package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors used by the gateway.
type Registry struct {
	Connections connectionMetrics
	Publishes   publishMetrics
	Stream      streamMetrics
}

type connectionMetrics struct {
	Active      prometheus.Gauge
	Total       prometheus.Counter
	RateLimited *prometheus.CounterVec
	Rejected    prometheus.Counter
}

type publishMetrics struct {
	Total        prometheus.Counter
	Unauthorized prometheus.Counter
	Delivered    prometheus.Counter
	Dropped      *prometheus.CounterVec
}

type streamMetrics struct {
	Heartbeats  prometheus.Counter
	WriteErrors prometheus.Counter
}

// NewRegistry creates the gateway's Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		Connections: connectionMetrics{
			Active: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sse_connections_active",
				Help: "Number of open SSE subscriber connections",
			}),
			Total: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_connections_total",
				Help: "Total number of SSE subscriber connections accepted",
			}),
			RateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sse_connections_rate_limited_total",
				Help: "Subscribe attempts rejected by rate limiting, by scope",
			}, []string{"scope"}),
			Rejected: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_connections_rejected_total",
				Help: "Subscribe attempts rejected by admission control",
			}),
		},
		Publishes: publishMetrics{
			Total: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_publishes_total",
				Help: "Total number of accepted publish requests",
			}),
			Unauthorized: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_publishes_unauthorized_total",
				Help: "Publish requests rejected as unauthorized_service",
			}),
			Delivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_envelopes_delivered_total",
				Help: "Envelopes successfully enqueued to subscriber send queues",
			}),
			Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sse_envelopes_dropped_total",
				Help: "Envelopes dropped during fan-out, by reason",
			}, []string{"reason"}),
		},
		Stream: streamMetrics{
			Heartbeats: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_heartbeats_total",
				Help: "Heartbeat comment lines written to subscriber streams",
			}),
			WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sse_stream_write_errors_total",
				Help: "Write errors that terminated a subscriber stream",
			}),
		},
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
