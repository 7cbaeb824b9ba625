// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthAttempts counts register and login attempts by outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_auth_attempts_total",
		Help: "Register and login attempts by operation and result",
	}, []string{"operation", "result"})

	// MessagesSent counts user messages forwarded to the assistant.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_messages_sent_total",
		Help: "Total number of chat messages sent to the assistant",
	})

	// UpstreamRequests counts assistant calls by operation and result.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_upstream_requests_total",
		Help: "Assistant API calls by operation and result",
	}, []string{"operation", "result"})

	// UpstreamLatency records assistant call latency.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docchat_upstream_latency_seconds",
		Help:    "Assistant API latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_rate_limited_total",
		Help: "Requests rejected by the rate limiter by scope",
	}, []string{"scope"})

	// EventsPublished counts activity events by type and result.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_events_published_total",
		Help: "Activity events by type and publish result",
	}, []string{"type", "result"})
)

// Result label values
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ObserveUpstream records the outcome and latency of an assistant call
func ObserveUpstream(operation string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	UpstreamRequests.WithLabelValues(operation, result).Inc()
	UpstreamLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
