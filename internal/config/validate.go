package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g. "gateway.port").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements error and provides access to all field
// errors.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration, collecting every violation
// before returning. Returns nil if the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateBackend(&cfg.Backend)...)
	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateLogTailer(&cfg.LogTailer)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateBackend(cfg *BackendConfig) []FieldError {
	var errs []FieldError

	if cfg.HTTPBaseURL == "" {
		errs = append(errs, FieldError{Field: "backend.http_base_url", Message: "backend HTTP base URL is required"})
	} else if _, err := url.Parse(cfg.HTTPBaseURL); err != nil {
		errs = append(errs, FieldError{Field: "backend.http_base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
	}

	if cfg.ControlURL != "" {
		if _, err := url.Parse(cfg.ControlURL); err != nil {
			errs = append(errs, FieldError{Field: "backend.control_url", Message: fmt.Sprintf("invalid URL: %v", err)})
		}
	}

	return errs
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{Field: "gateway.port", Message: "port must be between 1 and 65535"})
	}

	return errs
}

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	for _, entry := range cfg.Allowlist {
		if entry == "*" {
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err != nil {
			errs = append(errs, FieldError{
				Field:   "security.allowlist",
				Message: fmt.Sprintf("entry %q is neither a literal IP nor a CIDR", entry),
			})
		}
	}

	for i, p := range cfg.Secrets.Providers {
		prefix := fmt.Sprintf("security.secrets.providers[%d]", i)
		switch p.Type {
		case "env":
			// Prefix optional; empty means no prefix filtering.
		case "file":
			if p.Path == "" {
				errs = append(errs, FieldError{Field: prefix + ".path", Message: "path is required for a file secret provider"})
			}
		default:
			errs = append(errs, FieldError{Field: prefix + ".type", Message: fmt.Sprintf("unknown provider type %q: must be 'env' or 'file'", p.Type)})
		}
	}

	return errs
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.timeout", Message: "timeout must be non-negative"})
	}
	if cfg.StreamTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.stream_timeout", Message: "stream timeout must be non-negative"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "proxy.cors.max_age", Message: "max age must be non-negative"})
	}

	return errs
}

func validateLogTailer(cfg *LogTailerConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Dir == "" {
		errs = append(errs, FieldError{Field: "log_tailer.dir", Message: "log directory is required when log monitoring is enabled"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be one of debug, info, warn, error", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be one of json, text, console", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path is required when metrics are enabled"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "tracing endpoint is required when tracing is enabled"})
		}
		validExporters := map[string]bool{"otlp": true, "jaeger": true, "zipkin": true}
		if !validExporters[cfg.Tracing.Exporter] {
			errs = append(errs, FieldError{Field: "telemetry.tracing.exporter", Message: fmt.Sprintf("invalid exporter %q", cfg.Tracing.Exporter)})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}

	return errs
}
