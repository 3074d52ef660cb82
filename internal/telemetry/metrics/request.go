package metrics

import (
	"time"

	"github.com/modelgate/modelgate/internal/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks metrics for requests forwarded through the proxy
// path.
//
// Metrics:
//   - <namespace>_<subsystem>_requests_total: total forwarded requests by model and status
//   - <namespace>_<subsystem>_request_duration_seconds: forwarding duration histogram
//   - <namespace>_<subsystem>_request_tokens_total: total tokens reported by the backend
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of proxied requests processed",
			},
			[]string{"model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens reported by the backend",
			},
			[]string{"model", "type"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.tokensTotal,
	)

	return rm
}

// RecordRequest records metrics for a completed proxied request.
func (rm *RequestMetrics) RecordRequest(model, status string, duration time.Duration, tokens int) {
	rm.requestsTotal.WithLabelValues(model, status).Inc()
	rm.requestDuration.WithLabelValues(model).Observe(duration.Seconds())

	if tokens > 0 {
		rm.tokensTotal.WithLabelValues(model, "total").Add(float64(tokens))
	}
}

// RecordTokens records prompt and completion token counts separately.
func (rm *RequestMetrics) RecordTokens(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		rm.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		rm.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
