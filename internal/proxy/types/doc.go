// Package types defines the OpenAI-compatible error envelope used at the
// gateway's HTTP boundary.
//
// The proxy path itself does not decode requests or responses into typed
// OpenAI schemas: request and response bodies are forwarded to the backend
// as opaque JSON, with only a handful of top-level fields inspected for
// augmentation (see the proxy package). This package exists solely so that
// errors the gateway originates itself — as opposed to errors the backend
// already returned in its own JSON body — look like the OpenAI errors a
// client's SDK already knows how to parse.
//
//	{
//	  "error": {
//	    "message": "the request took too long to complete",
//	    "type": "gateway_timeout",
//	    "code": "backend_timeout"
//	  }
//	}
package types
