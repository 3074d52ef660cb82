package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/modelgate/modelgate/internal/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the orchestrator for all Prometheus metrics exposed by the
// gateway. It manages metric registration and provides a single interface
// for recording metrics from the proxy path and the gateway's own
// components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	gatewayMetrics *GatewayMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "modelgate"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "gateway"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	}
	if len(cfg.TokenCountBuckets) == 0 {
		cfg.TokenCountBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(10000),
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.gatewayMetrics = NewGatewayMetrics(cfg, registry)

	return c
}

// RecordRequest records metrics for a completed proxied request.
func (c *Collector) RecordRequest(model, status string, duration time.Duration, tokens int) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("request:%s:%s", model, status)
	if !c.cardinalityLimiter.Allow(labelSet) {
		model = "other"
	}

	c.requestMetrics.RecordRequest(model, status, duration, tokens)
}

// RecordTokens records prompt/completion token counts separately.
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordTokens(model, promptTokens, completionTokens)
}

// SetControlHealthy records whether the control-channel session is connected.
func (c *Collector) SetControlHealthy(healthy bool) {
	if !c.config.Enabled {
		return
	}
	c.gatewayMetrics.SetControlHealthy(healthy)
}

// SetActiveModel records a change of the currently active model.
func (c *Collector) SetActiveModel(previous, current string) {
	if !c.config.Enabled {
		return
	}
	c.gatewayMetrics.SetActiveModel(previous, current)
}

// RecordEventDropped records an event dropped because a subscriber's queue
// was full.
func (c *Collector) RecordEventDropped(subscriberKind string) {
	if !c.config.Enabled {
		return
	}
	c.gatewayMetrics.RecordEventDropped(subscriberKind)
}

// RecordTailerLine records a log line the tailer processed.
func (c *Collector) RecordTailerLine(eventType string) {
	if !c.config.Enabled {
		return
	}
	c.gatewayMetrics.RecordTailerLine(eventType)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label sets it admits.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if the cardinality limit hasn't been reached yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
