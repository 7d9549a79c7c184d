package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/internal/logger"
	"github.com/marmos91/dittoblk/internal/telemetry"
	"github.com/marmos91/dittoblk/pkg/api"
	"github.com/marmos91/dittoblk/pkg/api/handlers"
	"github.com/marmos91/dittoblk/pkg/config"
	"github.com/marmos91/dittoblk/pkg/daemon"
	"github.com/marmos91/dittoblk/pkg/driver"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/dittoblk/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dittoblk server",
	Long: `Start the dittoblk server with the specified configuration.

The server registers every configured disk, starts the idle motor daemon
(and the periodic flusher when daemon.flush_interval is set) and serves
the REST API. On shutdown every cache is written back before the drivers
and stores are closed.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Examples:
  # Start in background (default)
  dittoblk start

  # Start in foreground
  dittoblk start --foreground

  # Start with custom config file
  dittoblk start --config /etc/dittoblk/config.yaml

  # Start with environment variable overrides
  DITTOBLK_LOGGING_LEVEL=DEBUG dittoblk start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/dittoblk/dittoblk.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/dittoblk/dittoblk.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dittoblk",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dittoblk",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	// Metrics must exist before the registry creates its collectors
	metricsResult := config.InitializeMetrics(cfg)

	rt, err := config.InitializeRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer closeCancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Error("Registry shutdown completed with errors", logger.Err(err))
		} else {
			logger.Info("All disks synced and closed")
		}
	}()

	idleCfg, err := idleConfig(cfg.Daemon)
	if err != nil {
		return err
	}
	idle := daemon.NewIdle(rt.Registry, idleCfg)
	idle.Start(ctx)
	defer idle.Stop(cfg.ShutdownTimeout)

	if cfg.Daemon.FlushInterval > 0 {
		flusher := daemon.NewFlusher(rt.Registry, cfg.Daemon.FlushInterval)
		flusher.Start(ctx)
		defer flusher.Stop(cfg.ShutdownTimeout)
		logger.Info("Periodic flusher enabled", "interval", cfg.Daemon.FlushInterval)
	}

	metricsDone := make(chan error, 1)

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsDone <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsResult.Server.Shutdown(shutdownCtx)
		}()
	}

	var apiDone chan error
	if cfg.API.Enabled {
		apiDone = make(chan error, 1)
		apiServer := api.NewServer(api.APIConfig{
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		}, rt.Registry, namedStores(rt))
		go func() {
			apiDone <- apiServer.Start(ctx)
		}()
	}

	if path := watchedConfigPath(GetConfigFile()); path != "" {
		go func() {
			err := config.Watch(ctx, path, func(c *config.Config) {
				if c.Logging.Level != cfg.Logging.Level {
					logger.Info("Log level changed", "from", cfg.Logging.Level, "to", c.Logging.Level)
					logger.SetLevel(c.Logging.Level)
					cfg.Logging.Level = c.Logging.Level
				}
			})
			if err != nil {
				logger.Warn("Config watch stopped", logger.Err(err))
			}
		}()
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.", "disks", len(rt.Registry.Disks()))

	// A nil apiDone blocks forever, leaving signals and metrics errors.
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		if apiDone != nil {
			if err := <-apiDone; err != nil {
				logger.Error("API server shutdown error", "error", err)
			}
		}
		return nil
	case err := <-apiDone:
		cancel()
		if err != nil {
			logger.Error("Server error", "error", err)
		}
		return err
	case err := <-metricsDone:
		cancel()
		logger.Error("Server error", "error", err)
		return err
	}
}

// idleConfig converts the daemon section into the idle daemon settings.
func idleConfig(dc config.DaemonConfig) (daemon.IdleConfig, error) {
	cfg := daemon.IdleConfig{
		IdleTimeout:  dc.IdleTimeout,
		PollInterval: dc.PollInterval,
	}
	for _, name := range dc.MotorClasses {
		class, err := driver.ParseClass(name)
		if err != nil {
			return daemon.IdleConfig{}, fmt.Errorf("daemon.motor_classes: %w", err)
		}
		cfg.Classes = append(cfg.Classes, class)
	}
	return cfg, nil
}

// namedStores lists the runtime's extent stores in name order for the
// health endpoint.
func namedStores(rt *config.Runtime) []handlers.NamedStore {
	names := make([]string, 0, len(rt.Stores))
	for name := range rt.Stores {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]handlers.NamedStore, 0, len(names))
	for _, name := range names {
		out = append(out, handlers.NamedStore{Name: name, Type: rt.StoreType(name), Store: rt.Stores[name]})
	}
	return out
}

// watchedConfigPath returns the file to watch for live changes, or "" when
// the configuration came from defaults only.
func watchedConfigPath(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}
