package config

import "time"

// Config is the root configuration structure for the gateway. It is
// resolved once at startup (see load.go) into an immutable value; nothing
// downstream mutates it.
type Config struct {
	// Backend describes the LLM runtime the gateway fronts.
	Backend BackendConfig `yaml:"backend"`

	// Gateway contains the bind address for the gateway's own HTTP server.
	Gateway GatewayConfig `yaml:"gateway"`

	// Security contains access-control configuration: the shared secret,
	// the source-address allowlist, and secret sourcing.
	Security SecurityConfig `yaml:"security"`

	// Proxy contains timeouts and CORS policy for the forwarding path.
	Proxy ProxyConfig `yaml:"proxy"`

	// LogTailer contains configuration for following the backend's
	// rolling log directory.
	LogTailer LogTailerConfig `yaml:"log_tailer"`

	// Telemetry contains configuration for observability: logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BackendConfig describes the backend LLM runtime's two interfaces.
type BackendConfig struct {
	// HTTPBaseURL is the backend's OpenAI-compatible HTTP base URL.
	// Example: "http://127.0.0.1:1234".
	HTTPBaseURL string `yaml:"http_base_url"`

	// ControlURL is the backend's control-channel URL. When empty it is
	// derived from HTTPBaseURL by swapping http->ws, https->wss.
	ControlURL string `yaml:"control_url"`
}

// GatewayConfig contains the gateway's own bind address.
type GatewayConfig struct {
	// Host is the interface to bind to. Default: "0.0.0.0".
	Host string `yaml:"host"`

	// Port is the TCP port to bind to. Default: 8080.
	Port int `yaml:"port"`
}

// SecurityConfig contains the Access Filter's configuration.
type SecurityConfig struct {
	// SharedSecret is compared against the X-API-Key header. Empty
	// disables the shared-secret check entirely.
	SharedSecret string `yaml:"shared_secret"`

	// Allowlist is a list of literal IPs and/or CIDRs permitted to reach
	// the gateway. A single entry of "*" disables source filtering.
	Allowlist []string `yaml:"allowlist"`

	// RequireAuthForHealth controls whether /health is exempt from the
	// shared-secret check. Default: false (health is exempt).
	RequireAuthForHealth bool `yaml:"require_auth_for_health"`

	// Secrets contains the provider chain used to resolve SharedSecret
	// when it names a provider reference instead of a literal value.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig selects how secret-shaped config values are resolved.
type SecretsConfig struct {
	// Providers is a list of secret providers tried in order.
	Providers []SecretProviderConfig `yaml:"providers"`
}

// SecretProviderConfig configures a single secret provider.
type SecretProviderConfig struct {
	// Type selects the provider: "env" or "file".
	Type string `yaml:"type"`

	// Prefix is the environment variable prefix for the "env" provider.
	Prefix string `yaml:"prefix,omitempty"`

	// Path is the secret file or directory for the "file" provider.
	Path string `yaml:"path,omitempty"`

	// Watch enables fsnotify-based reload for the "file" provider.
	Watch bool `yaml:"watch,omitempty"`
}

// ProxyConfig contains forwarding timeouts and CORS policy.
type ProxyConfig struct {
	// Timeout bounds non-streaming proxied requests. Default: 120s.
	Timeout time.Duration `yaml:"timeout"`

	// StreamTimeout bounds streaming proxied requests. 0 = unbounded.
	StreamTimeout time.Duration `yaml:"stream_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration applied
	// to the northbound HTTP surface.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	MaxAge           int      `yaml:"max_age"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// LogTailerConfig configures the backend log-following component.
type LogTailerConfig struct {
	// Dir is the root of the backend's rolling log directory
	// (<root>/YYYY-MM/YYYY-MM-DD.N.log).
	Dir string `yaml:"dir"`

	// Enabled controls whether the tailer runs at all.
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured-logging configuration.
type LoggingConfig struct {
	// Level is one of {error, warn, info, debug}. Default: "info".
	Level string `yaml:"level"`

	// Format controls output shape: "json", "text", or "console".
	Format string `yaml:"format"`

	// AddSource includes file:line in log entries.
	AddSource bool `yaml:"add_source"`

	// Redact enables redaction of secret-shaped values before they reach
	// the log sink (shared secret, Authorization/X-API-Key headers).
	Redact bool `yaml:"redact"`

	// BufferSize is the size of the async log buffer.
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for proxied
	// request duration, in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`

	// TokenCountBuckets defines histogram buckets for token counts
	// reported by the backend's usage object.
	TokenCountBuckets []float64 `yaml:"token_count_buckets"`
}

// TracingConfig contains distributed-tracing configuration.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Sampler     string  `yaml:"sampler"`
	SampleRatio float64 `yaml:"sample_ratio"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	OTLP        OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	Insecure bool          `yaml:"insecure"`
	Timeout  time.Duration `yaml:"timeout"`
}
