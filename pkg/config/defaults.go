package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittoblk/internal/bytesize"
	"github.com/marmos91/dittoblk/pkg/cache"
)

// Defaults that are referenced outside ApplyDefaults.
const (
	DefaultSectorSize  = 512
	DefaultExtentSize  = 64 * bytesize.KiB
	DefaultMetricsPort = 9090
	DefaultAPIPort     = 8080
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyCacheDefaults(&cfg.Cache)
	applyDaemonDefaults(&cfg.Daemon)
	for i := range cfg.Disks {
		applyDiskDefaults(&cfg.Disks[i])
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultAPIPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = bytesize.ByteSize(cache.DefaultMaxSize)
	}
}

func applyDaemonDefaults(cfg *DaemonConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if len(cfg.MotorClasses) == 0 {
		cfg.MotorClasses = []string{"floppy"}
	}
	// FlushInterval stays zero: periodic write-back is opt-in.
}

func applyDiskDefaults(cfg *DiskConfig) {
	if cfg.SectorSize == 0 {
		cfg.SectorSize = DefaultSectorSize
	}
	if cfg.Driver == "object" && cfg.Object.ExtentSize == 0 {
		cfg.Object.ExtentSize = DefaultExtentSize
	}
}

// GetDefaultConfig returns a Config with all default values applied and a
// single 1.44MB floppy RAM disk, so the daemon has something to serve.
func GetDefaultConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			Enabled: true,
		},
		Disks: []DiskConfig{
			{
				Class:     "floppy",
				Removable: true,
				Size:      1440 * bytesize.KiB,
				Driver:    "ram",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
