// Package proxy implements the gateway's Proxy Path: a byte-level,
// single-backend reverse proxy for the backend's OpenAI-compatible HTTP
// surface.
//
// # Overview
//
// The proxy path does not decode request or response bodies into typed
// OpenAI schemas. It is a pass-through: request and response bytes are
// forwarded to and from the backend largely unchanged. The only exception
// is a shallow, generic-JSON-map inspection of chat/completions and
// completions POST bodies, used to inject the active model and sampling
// defaults when the client omitted them.
//
// # Route matching
//
// Both the canonical /v1/<suffix> paths and OpenAI's bare shorthand paths
// (/chat/completions, /completions, /models, /embeddings,
// /images/generations, /audio/transcriptions, /audio/translations) are
// accepted; NormalizePath rewrites the bare forms before forwarding. Paths
// under /admin, /debug, and /health are never proxy-eligible.
//
// # Streaming
//
// A request with "stream": true in its JSON body is proxied with its own
// timeout (proxy_stream_timeout, 0 = unbounded) and its backend response is
// piped to the client verbatim, chunk by chunk, rather than re-encoded.
//
// # Lifecycle events
//
// Every proxied request publishes inference_start on arrival and exactly
// one of inference_complete or error on completion, to the shared event
// bus, and appends a RequestRecord to the state store.
//
// # Error handling
//
// A backend response that was successfully received, even a non-2xx one,
// is passed through unchanged: the client sees exactly what the backend
// sent. HandleError only applies to failures the gateway experiences
// itself — malformed request bodies (RequestError) and transport failures
// where no backend response was ever received (TransportError) — and
// converts them into the OpenAI-compatible error envelope.
package proxy
