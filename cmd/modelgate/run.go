package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelgate/modelgate/internal/admin"
	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/control"
	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/proxy"
	"github.com/modelgate/modelgate/internal/security/secrets"
	"github.com/modelgate/modelgate/internal/state"
	"github.com/modelgate/modelgate/internal/tailer"
	"github.com/modelgate/modelgate/internal/telemetry/logging"
	"github.com/modelgate/modelgate/internal/telemetry/metrics"
	"github.com/modelgate/modelgate/internal/telemetry/tracing"
	"github.com/modelgate/modelgate/pkg/cli"
	"github.com/modelgate/modelgate/pkg/server"
)

var runFlags struct {
	host     string
	port     int
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Modelgate gateway",
	Long: `Start the Modelgate gateway with the specified configuration.

The gateway listens on the configured address, gates every request through
the Access Filter, and forwards OpenAI-compatible traffic to the backend LLM
runtime while tailing its logs and exposing an admin/debug surface.

Examples:
  # Start with default config
  modelgate run

  # Start with a custom config file
  modelgate run --config /etc/modelgate/config.yaml

  # Override the bind address
  modelgate run --host 0.0.0.0 --port 8080

  # Validate config without starting the gateway
  modelgate run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.host, "host", "", "override gateway bind host")
	runCmd.Flags().IntVar(&runFlags.port, "port", 0, "override gateway bind port")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.host != "" {
		cfg.Gateway.Host = runFlags.host
	}
	if runFlags.port != 0 {
		cfg.Gateway.Port = runFlags.port
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if err := resolveSharedSecret(cfg); err != nil {
		return cli.NewConfigError("security.shared_secret", err.Error())
	}

	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	slog.SetDefault(slog.New(buildSlogHandler(cfg.Telemetry.Logging)))

	logger, err := logging.New(logging.Config{
		Level:      cfg.Telemetry.Logging.Level,
		Format:     cfg.Telemetry.Logging.Format,
		AddSource:  cfg.Telemetry.Logging.AddSource,
		RedactPII:  cfg.Telemetry.Logging.Redact,
		BufferSize: cfg.Telemetry.Logging.BufferSize,
	})
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize logging: %w", err))
	}
	defer logger.Shutdown()
	logger.Info("modelgate starting", "version", Version, "config", cfgFile)

	printBanner(cfg)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	store := state.New()
	bus := eventbus.New(eventbus.DefaultQueueCapacity, collector)

	controlURL := cfg.Backend.ControlURL
	if controlURL == "" {
		controlURL, err = control.DeriveControlURL(cfg.Backend.HTTPBaseURL)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to derive control URL: %w", err))
		}
	}
	controlClient := control.NewClient(controlURL, collector)

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	if cfg.LogTailer.Enabled {
		slog.Info("starting log tailer", "dir", cfg.LogTailer.Dir)
		logTailer := tailer.New(cfg.LogTailer.Dir, bus, collector)
		go func() {
			if err := logTailer.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("log tailer stopped unexpectedly", "error", err)
			}
		}()
	}

	proxyHandler := proxy.NewHandler(cfg.Backend, cfg.Proxy, store, bus, collector)

	var shuttingDown atomic.Bool
	adminHandlers := admin.New(store, bus, controlClient, shuttingDown.Load)

	srv := server.NewServer(cfg, proxyHandler, adminHandlers, collector, &shuttingDown, server.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Gateway listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("✓ Health endpoint: http://%s:%d/health\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s:%d/metrics\n", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case <-ctx.Done():
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return cli.NewCommandError("run", err)
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown error", "error", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}

// resolveSharedSecret resolves cfg.Security.SharedSecret through the
// configured secret providers, if any, and if it names a ${secret:...}
// reference. A config with no providers configured leaves SharedSecret
// untouched, since it's then a literal value.
func resolveSharedSecret(cfg *config.Config) error {
	if len(cfg.Security.Secrets.Providers) == 0 {
		return nil
	}

	var providers []secrets.SecretProvider
	for _, pc := range cfg.Security.Secrets.Providers {
		switch pc.Type {
		case "env":
			providers = append(providers, secrets.NewEnvProvider(pc.Prefix))
		case "file":
			fp, err := secrets.NewFileProvider(pc.Path, pc.Watch)
			if err != nil {
				return fmt.Errorf("secret provider %q: %w", pc.Type, err)
			}
			providers = append(providers, fp)
		default:
			return fmt.Errorf("unknown secret provider type %q", pc.Type)
		}
	}

	manager := secrets.NewManager(providers, secrets.CacheConfig{
		Enabled: true,
		TTL:     5 * time.Minute,
		MaxSize: 64,
	})

	resolved, err := manager.ResolveReferences(context.Background(), cfg.Security.SharedSecret)
	if err != nil {
		return err
	}
	cfg.Security.SharedSecret = resolved
	return nil
}

// buildSlogHandler builds the process-wide default slog handler from the
// logging config. Package-level slog calls throughout the gateway (as
// opposed to the logging.Logger instance this command uses for its own
// startup/shutdown messages) go through this handler, so its level and
// format must match what the operator configured.
func buildSlogHandler(cfg config.LoggingConfig) slog.Handler {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	if cfg.Format == "text" || cfg.Format == "console" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Modelgate v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
	slog.Debug("backend configured", "http_base_url", cfg.Backend.HTTPBaseURL)
	slog.Debug("log tailer", "enabled", cfg.LogTailer.Enabled, "dir", cfg.LogTailer.Dir)
}
