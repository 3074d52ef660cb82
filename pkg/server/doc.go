// Package server ties together the Access Filter, the proxy path, and the
// admin/debug surface into the gateway's single HTTP listener, and
// manages its lifecycle.
//
// # Architecture
//
// NewServer takes already-constructed dependencies (the proxy handler,
// the admin handlers, an optional metrics collector) and builds the route
// table and middleware chain around them. It does not construct those
// dependencies itself; that is cmd/modelgate's job.
//
// # Routes
//
//   - GET  /health                   - liveness/readiness probe
//   - GET  /version                  - build version, commit, build date
//   - GET  /admin/models             - list loaded and downloaded models
//   - POST /admin/models/load        - load a model
//   - POST /admin/models/unload      - unload a model
//   - POST /admin/models/activate    - change the active model, no backend call
//   - GET  /debug/status             - snapshot of in-memory state
//   - GET  /debug/metrics            - derived performance metrics
//   - GET  /debug/stream             - SSE stream of Event Bus events
//   - GET  /metrics                  - Prometheus exposition, if a collector is supplied
//   - everything else                - the proxy path (OpenAI-compatible forwarding)
//
// # Middleware chain
//
// Requests pass through, innermost to outermost:
//  1. Access Filter: source-address allowlist, then shared-secret check
//  2. CORS: adds Cross-Origin Resource Sharing headers
//  3. RequestID: generates a unique request ID for tracing
//  4. Logging: logs request/response details
//  5. Recovery: recovers from panics and returns a 500
//
// There is no blanket per-request timeout at this layer: the proxy path
// enforces its own proxy_timeout/stream_timeout, and /debug/stream is a
// long-lived connection by design.
//
// # Graceful shutdown
//
// Shutdown flips the shared shuttingDown flag (so /health starts
// reporting it), stops accepting new connections, and waits up to 10
// seconds for in-flight requests to finish before forcing closure.
package server
