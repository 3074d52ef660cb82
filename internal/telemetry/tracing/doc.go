// Package tracing provides OpenTelemetry distributed tracing for the gateway.
//
// # Overview
//
// The tracing package implements W3C Trace Context propagation, span creation,
// and trace export to OTLP collectors over gRPC. It provides visibility
// into request flows across the proxy path and the gateway's own components
// with minimal overhead (<100µs per span).
//
// # Distributed Tracing
//
// Each span records:
//   - Operation name and duration
//   - Attributes (key-value pairs)
//   - Events (timestamped logs within the span)
//   - Trace context (trace ID, span ID, sampling decision)
//
// # Trace Context Propagation
//
// The package implements W3C Trace Context (https://www.w3.org/TR/trace-context/)
// for propagating trace context across HTTP boundaries:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//	tracestate: congo=t61rcWkgMzE
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces (tracing disabled)
//   - ratio: Sample a percentage of traces (production)
//
// # Usage
//
//	cfg := &config.TracingConfig{
//	    Enabled:     true,
//	    Sampler:     "ratio",
//	    SampleRatio: 0.1,
//	    Exporter:    "otlp",
//	    Endpoint:    "localhost:4317",
//	    ServiceName: "modelgate",
//	}
//	tracer, err := tracing.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "modelgate.proxy.request")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("modelgate.model", "llama-3-8b-instruct"),
//	    attribute.Int("modelgate.tokens.total", 1500),
//	)
//
//	span.AddEvent("model_activated", trace.WithAttributes(
//	    attribute.String("modelgate.model", "llama-3-8b-instruct"),
//	))
//
// # Gateway Spans
//
// The gateway creates these spans:
//
//	proxy.request          one per proxied request
//	control.load_model     one per control-channel load call
//	control.unload_model   one per control-channel unload call
//	tailer.parse_line      one per log line the tailer parses
//
// # HTTP Integration
//
// Extract trace context from incoming HTTP requests:
//
//	ctx := tracing.Extract(r.Context(), r.Header)
//	ctx, span := tracer.Start(ctx, "handle_request")
//	defer span.End()
//
// Inject trace context into outgoing HTTP requests:
//
//	req, _ := http.NewRequestWithContext(ctx, "POST", url, body)
//	tracing.Inject(ctx, req.Header)
//
// # Performance
//
// The tracing package is designed for minimal overhead:
//   - Span creation: <100µs per span
//   - Context propagation: <10µs
//   - Sampling decision: <1µs
//   - When disabled: <1µs (noop span)
//
// # Trace Exporters
//
// The OTLP (OpenTelemetry Protocol) exporter over gRPC is the only one
// implemented:
//
//	telemetry:
//	  tracing:
//	    exporter: otlp
//	    endpoint: localhost:4317
//	    otlp:
//	      insecure: true
//	      timeout: 10s
//
// Configuration validation accepts exporter: jaeger and exporter: zipkin,
// but New returns an error for both.
//
// # Attribute Helpers
//
// Common attributes can be set using helper functions:
//
//	tracing.SetModelAttribute(span, "llama-3-8b-instruct")
//	tracing.SetRequestAttributes(span, requestID, session)
//	tracing.SetTokenAttributes(span, promptTokens, completionTokens)
//	tracing.SetErrorAttributes(span, err, "backend_timeout")
package tracing
