/*
Package secrets provides a pluggable framework for loading secrets from multiple sources.

# Overview

The secrets package lets the gateway securely resolve its shared secret and
any other sensitive configuration values from environment variables or
mounted files, rather than requiring them in plaintext in a config file.
Secrets are cached in memory with a TTL to reduce backend calls.

# Secret Providers

The package supports multiple secret providers that can be chained together
with priority-based fallback. Each provider implements the SecretProvider
interface:

  - Environment Variable Provider: load secrets from environment variables
  - File-Based Provider: load secrets from individual files (Kubernetes-style)

# Basic Usage

Create a secret manager with multiple providers:

	import (
		"context"
		"time"
		"github.com/modelgate/modelgate/internal/security/secrets"
	)

	envProvider := secrets.NewEnvProvider("MODELGATE_SECRET_")
	fileProvider, _ := secrets.NewFileProvider("/var/secrets", true)

	cacheConfig := secrets.CacheConfig{
		Enabled: true,
		TTL:     5 * time.Minute,
		MaxSize: 1000,
	}

	manager := secrets.NewManager(
		[]secrets.SecretProvider{envProvider, fileProvider},
		cacheConfig,
	)

	sharedSecret, err := manager.GetSecret(context.Background(), "shared-secret")
	if err != nil {
		log.Fatal(err)
	}

# Secret References

The manager can resolve secret references in configuration strings using the ${secret:name} syntax:

	configValue := "shared_secret: ${secret:shared-secret}"
	resolved, err := manager.ResolveReferences(context.Background(), configValue)
	// resolved = "shared_secret: s3cr3t..."

# Environment Variable Provider

The environment variable provider loads secrets from environment variables with an optional prefix:

	provider := secrets.NewEnvProvider("MODELGATE_SECRET_")

	// Secret name "shared-secret" maps to env var "MODELGATE_SECRET_SHARED_SECRET"
	value, err := provider.GetSecret(ctx, "shared-secret")

Environment variable naming:
  - Secret name: "shared-secret"
  - Env var name: "MODELGATE_SECRET_SHARED_SECRET"
  - Conversion: uppercase, replace hyphens with underscores, add prefix

# File-Based Provider

The file-based provider loads secrets from individual files in a directory:

	provider, err := secrets.NewFileProvider("/var/secrets", true)
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close()

	// Secret name "shared-secret" reads from "/var/secrets/shared-secret"
	value, err := provider.GetSecret(ctx, "shared-secret")

File-based features:
  - File permissions validation (0600 or 0400 only)
  - Optional file watching for auto-reload
  - Kubernetes-style secret mounting support
  - Automatic cache invalidation on file changes

# Secret Caching

Secrets are cached in memory to reduce backend calls:

	cacheConfig := secrets.CacheConfig{
		Enabled: true,        // Enable caching
		TTL:     5 * time.Minute,  // Cache for 5 minutes
		MaxSize: 1000,        // Maximum 1000 secrets
	}

Cache features:
  - Eviction of the earliest-expiring entry when MaxSize is reached
  - TTL-based expiration
  - Automatic invalidation on provider refresh
  - Thread-safe access

# Provider Priority

When multiple providers are configured, they are tried in order:

	manager := secrets.NewManager(
		[]secrets.SecretProvider{
			envProvider,    // Try environment variables first
			fileProvider,   // Then try files
		},
		cacheConfig,
	)

The first provider that supports the secret and successfully returns a value wins.

# Secret Rotation

Providers that implement RefreshableProvider can reload secrets without restart:

	err := manager.Refresh(context.Background())
	if err != nil {
		log.Error("failed to refresh secrets", "error", err)
	}

The file provider automatically refreshes when its watched file changes.

# Security Considerations

Secret values are protected:
  - Never logged (secret names are redacted in logs)
  - Never included in error messages
  - File permissions validated (0600 or 0400 only)
  - Cached with TTL to minimize exposure window
  - Cleared from cache on refresh

# Configuration Example

	security:
	  secrets:
	    providers:
	      - type: "env"
	        prefix: "MODELGATE_SECRET_"
	      - type: "file"
	        path: "/var/secrets"
	        watch: true
	    cache:
	      enabled: true
	      ttl: "5m"
	      max_size: 1000

# Error Handling

Errors are returned for:
  - Secret not found in any provider
  - File permission errors (too permissive)

Example error handling:

	value, err := manager.GetSecret(ctx, "shared-secret")
	if err != nil {
		log.Error("failed to get secret",
			"name", "shared-secret",
			"error", err,
		)
		return err
	}

# Thread Safety

All components are thread-safe:
  - Cache uses sync.RWMutex for concurrent access
  - Manager supports concurrent GetSecret calls
  - Providers implement their own synchronization as needed

# Best Practices

1. Use environment variables for development
2. Use file-based secrets for Kubernetes
3. Enable caching to reduce backend load
4. Set appropriate TTL based on rotation frequency
5. Use file watching for zero-downtime rotation
6. Never commit secrets to version control
7. Validate file permissions on startup

# Example: Complete Setup

	package main

	import (
		"context"
		"log"
		"time"

		"github.com/modelgate/modelgate/internal/security/secrets"
	)

	func main() {
		envProvider := secrets.NewEnvProvider("MODELGATE_SECRET_")
		fileProvider, err := secrets.NewFileProvider("/var/secrets", true)
		if err != nil {
			log.Fatal(err)
		}
		defer fileProvider.Close()

		manager := secrets.NewManager(
			[]secrets.SecretProvider{envProvider, fileProvider},
			secrets.CacheConfig{
				Enabled: true,
				TTL:     5 * time.Minute,
				MaxSize: 1000,
			},
		)

		ctx := context.Background()

		sharedSecret, err := manager.GetSecret(ctx, "shared-secret")
		if err != nil {
			log.Fatal(err)
		}

		configValue := "shared_secret: ${secret:shared-secret}"
		resolved, err := manager.ResolveReferences(ctx, configValue)
		if err != nil {
			log.Fatal(err)
		}

		log.Printf("Resolved config:\n%s", resolved)
		_ = sharedSecret
	}
*/
package secrets
