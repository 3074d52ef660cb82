// Package metrics provides Prometheus metrics collection for the gateway.
//
// # Overview
//
// The metrics package tracks the health of the proxy path and the gateway's
// own background components: the control-channel session, the event bus,
// and the log tailer. It does not track provider, policy, or cost data since
// this gateway has a single fixed backend and no policy engine.
//
// # Metrics Categories
//
//   - Request Metrics: request count, duration, and token totals by model
//   - Gateway Metrics: control-session health, active model, event bus
//     drops, and log tailer throughput
//
// # Usage
//
//	collector := metrics.NewCollector(config, registry)
//
//	collector.RecordRequest("llama-3-8b-instruct", "success", time.Second, 1500)
//	collector.SetControlHealthy(true)
//	collector.SetActiveModel("", "llama-3-8b-instruct")
//	collector.RecordEventDropped("debug_stream")
//	collector.RecordTailerLine("lmstudio_model_loaded")
//
// # Histogram Buckets
//
// Request durations use these default buckets:
//
//	0.1s, 0.25s, 0.5s, 1s, 2s, 5s, 10s, 30s
//
// TokenCountBuckets also gets a default (100 up to 100K), but token totals
// are recorded as counters and no histogram uses those buckets.
//
// # Prometheus Endpoint
//
// All metrics are exposed on the /metrics endpoint in standard Prometheus format:
//
//	# HELP modelgate_gateway_requests_total Total number of proxied requests processed
//	# TYPE modelgate_gateway_requests_total counter
//	modelgate_gateway_requests_total{model="llama-3-8b-instruct",status="success"} 1234
//
// # Cardinality Management
//
// RecordRequest tracks at most 10,000 distinct model/status label sets;
// past that limit, a request with a new combination is recorded under the
// model label "other". The other recorders do not cap their labels.
package metrics
