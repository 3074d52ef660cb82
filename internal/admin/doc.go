// Package admin implements the gateway's northbound admin and debug
// endpoints: model lifecycle (/admin/models*), state/metrics introspection
// (/debug/status, /debug/metrics), the debug SSE stream (/debug/stream),
// and /health.
//
// # Model lifecycle
//
// LoadModel and UnloadModel drive the Control Client and mirror its result
// into the state store and Event Bus: a load/unload start event before the
// call, a complete event (or, on failure, an error event plus a non-2xx
// response) after. ActivateModel makes no backend call; it only changes
// which model the proxy path injects into requests that omit one.
//
// # Validation
//
// Every admin endpoint that accepts a body decodes it, checks the fields
// it cares about, and responds 400 with {"error":"Validation failed",
// "details":[...]} on the first set of problems found, before touching the
// Control Client or the state store.
//
// # Debug stream
//
// DebugStream subscribes to the Event Bus for the lifetime of the HTTP
// connection, relays every delivered event as an SSE frame, and writes a
// keep-alive comment every 30 seconds. The subscription is released as
// soon as the request context is done, whether from client disconnect or
// server shutdown.
package admin
