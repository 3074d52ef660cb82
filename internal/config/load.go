package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path. It
// applies default values, validates the configuration, and returns any
// errors. It does not apply environment overrides; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from an optional YAML file
// (path may be empty) and applies environment variable overrides.
// Environment variables follow the naming convention
// MODELGATE_SECTION_FIELD (e.g. MODELGATE_GATEWAY_PORT) and always take
// precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file, if path is non-empty, then apply defaults
//  2. Apply environment variable overrides
//  3. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format
// MODELGATE_SECTION_FIELD, matching the keys documented in §6 of the
// gateway's interface specification.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("MODELGATE_BACKEND_HTTP_BASE_URL"); val != "" {
		cfg.Backend.HTTPBaseURL = val
	}
	if val := os.Getenv("MODELGATE_BACKEND_CONTROL_URL"); val != "" {
		cfg.Backend.ControlURL = val
	}
	if val := os.Getenv("MODELGATE_GATEWAY_HOST"); val != "" {
		cfg.Gateway.Host = val
	}
	if val := os.Getenv("MODELGATE_GATEWAY_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Gateway.Port = i
		}
	}
	if val := os.Getenv("MODELGATE_SHARED_SECRET"); val != "" {
		cfg.Security.SharedSecret = val
	}
	if val := os.Getenv("MODELGATE_ALLOWLIST"); val != "" {
		cfg.Security.Allowlist = splitAndTrim(val)
	}
	if val := os.Getenv("MODELGATE_REQUIRE_AUTH_FOR_HEALTH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Security.RequireAuthForHealth = b
		}
	}
	if val := os.Getenv("MODELGATE_PROXY_TIMEOUT_MS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Proxy.Timeout = time.Duration(i) * time.Millisecond
		}
	}
	if val := os.Getenv("MODELGATE_PROXY_STREAM_TIMEOUT_MS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Proxy.StreamTimeout = time.Duration(i) * time.Millisecond
		}
	}
	if val := os.Getenv("MODELGATE_LOG_DIR"); val != "" {
		cfg.LogTailer.Dir = val
	}
	if val := os.Getenv("MODELGATE_ENABLE_LOG_MONITORING"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.LogTailer.Enabled = b
		}
	}
	if val := os.Getenv("MODELGATE_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}

	if val := os.Getenv("MODELGATE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("MODELGATE_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("MODELGATE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("MODELGATE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
