package metrics

import (
	"github.com/modelgate/modelgate/internal/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics tracks the operational state of the gateway's own
// components: the control-channel session, the log tailer, and the event
// bus, none of which are per-request.
type GatewayMetrics struct {
	controlHealthy   prometheus.Gauge
	activeModelInfo  *prometheus.GaugeVec
	eventBusDropped  *prometheus.CounterVec
	tailerLinesTotal *prometheus.CounterVec
}

// NewGatewayMetrics creates and registers gateway-state metrics.
func NewGatewayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GatewayMetrics {
	gm := &GatewayMetrics{
		controlHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "control_session_healthy",
			Help:      "1 if the control-channel session to the backend is currently connected, 0 otherwise",
		}),

		activeModelInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_model_info",
				Help:      "1 for the currently active model, labeled by model name; absent when no model is loaded",
			},
			[]string{"model"},
		),

		eventBusDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "eventbus_dropped_total",
				Help:      "Total number of events dropped because a subscriber's queue was full",
			},
			[]string{"subscriber_kind"},
		),

		tailerLinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tailer_lines_total",
				Help:      "Total number of log lines processed by the log tailer, by event type",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		gm.controlHealthy,
		gm.activeModelInfo,
		gm.eventBusDropped,
		gm.tailerLinesTotal,
	)

	return gm
}

// SetControlHealthy records whether the control-channel session is connected.
func (gm *GatewayMetrics) SetControlHealthy(healthy bool) {
	if healthy {
		gm.controlHealthy.Set(1)
	} else {
		gm.controlHealthy.Set(0)
	}
}

// SetActiveModel records the currently active model, clearing the gauge
// for any previously active model.
func (gm *GatewayMetrics) SetActiveModel(previous, current string) {
	if previous != "" && previous != current {
		gm.activeModelInfo.DeleteLabelValues(previous)
	}
	if current != "" {
		gm.activeModelInfo.WithLabelValues(current).Set(1)
	}
}

// RecordEventDropped records an event dropped due to a full subscriber queue.
func (gm *GatewayMetrics) RecordEventDropped(subscriberKind string) {
	gm.eventBusDropped.WithLabelValues(subscriberKind).Inc()
}

// RecordTailerLine records a log line processed by the tailer.
func (gm *GatewayMetrics) RecordTailerLine(eventType string) {
	gm.tailerLinesTotal.WithLabelValues(eventType).Inc()
}
