// Package config provides configuration management for the gateway.
//
// Configuration can be loaded from an optional YAML file and always accepts
// environment variable overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MODELGATE_SECTION_FIELD:
//
//   - MODELGATE_BACKEND_HTTP_BASE_URL overrides backend.http_base_url
//   - MODELGATE_GATEWAY_PORT overrides gateway.port
//   - MODELGATE_SHARED_SECRET overrides security.shared_secret
//   - MODELGATE_LOG_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Values are applied in this order, later overrides earlier:
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file, if one is given
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	if err := config.Initialize(path); err != nil {
//		log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Gateway.Port)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
package config
