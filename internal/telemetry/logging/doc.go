// Package logging provides structured logging with redaction of
// gateway-sensitive fields.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON, text, and console formats
//   - Redaction of the shared secret, API keys, bearer tokens, and log
//     file paths
//   - Context-aware logging with request IDs and model/session metadata
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	// Create a logger
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	// Log structured data
//	logger.Info("request forwarded",
//	    "request_id", "req-123",
//	    "api_key", "sk-abc123",  // automatically redacted
//	    "duration_ms", 1234,
//	)
//
//	// Create context-aware logger
//	ctx := logging.WithRequestID(ctx, "req-123")
//	ctxLogger := logger.WithContext(ctx)
//	ctxLogger.Info("forwarding")  // includes request_id automatically
//
// # Redaction
//
// Sensitive values are redacted from log fields when RedactPII is enabled:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Shared secret header: shared_secret: abc123 → shared_secret: ***
//   - Bearer tokens: Bearer abc.def.ghi → Bearer ***
//   - Log file paths: /var/log/app/2026-08/x.log → <log_path>
package logging
