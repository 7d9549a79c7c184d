package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittoblk/internal/bytesize"
)

// Config represents the dittoblk configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOBLK_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the REST API server configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Cache configures the per-disk sector caches
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Daemon configures the background motor and flush loops
	Daemon DaemonConfig `mapstructure:"daemon" yaml:"daemon"`

	// Stores declares named extent stores used by object-backed disks
	Stores []StoreConfig `mapstructure:"stores" validate:"unique=Name,dive" yaml:"stores,omitempty"`

	// Disks declares the disks registered at startup
	Disks []DiskConfig `mapstructure:"disks" validate:"dive" yaml:"disks,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig configures the REST API server.
type APIConfig struct {
	// Enabled controls whether the API server is started
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the API
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// CacheConfig configures the sector caches.
type CacheConfig struct {
	// MaxSize is the per-disk cache budget
	// Supports human-readable formats: "1MiB", "512KiB"
	// Default: 1MiB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`

	// PoolLimit bounds the payload memory of all caches together.
	// Zero means unlimited.
	PoolLimit bytesize.ByteSize `mapstructure:"pool_limit" yaml:"pool_limit,omitempty"`

	// Verify runs the full invariant check after every cache mutation and
	// asserts the disk lock on every call. Slow; meant for testing.
	Verify bool `mapstructure:"verify" yaml:"verify"`
}

// DaemonConfig configures the background loops.
type DaemonConfig struct {
	// IdleTimeout is how long a disk must be idle before its motor stops
	// Default: 2s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`

	// PollInterval is the idle sweep period
	// Default: 1s
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gte=0" yaml:"poll_interval"`

	// FlushInterval enables periodic write-back of every cache. Zero
	// disables the flusher.
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gte=0" yaml:"flush_interval"`

	// MotorClasses lists the disk classes whose motors the idle sweep stops
	// Default: [floppy]
	MotorClasses []string `mapstructure:"motor_classes" validate:"dive,oneof=floppy cdrom scsi hard ram" yaml:"motor_classes"`
}

// StoreConfig declares one extent store.
type StoreConfig struct {
	// Name is referenced by DiskConfig.Object.Store
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Type selects the backend
	// Valid values: memory, fs, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory fs badger s3" yaml:"type"`

	// FS holds filesystem backend options
	FS map[string]any `mapstructure:"fs" yaml:"fs,omitempty"`

	// Badger holds BadgerDB backend options
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 holds S3 backend options
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// DiskConfig declares one disk.
type DiskConfig struct {
	// Name overrides the class-derived name (fd0, hd1, ...)
	Name string `mapstructure:"name" yaml:"name,omitempty"`

	// Class is the media class
	// Valid values: floppy, cdrom, scsi, hard, ram
	Class string `mapstructure:"class" validate:"required,oneof=floppy cdrom scsi hard ram" yaml:"class"`

	// Removable marks media that can be ejected
	Removable bool `mapstructure:"removable" yaml:"removable"`

	// SectorSize in bytes
	// Default: 512
	SectorSize uint32 `mapstructure:"sector_size" validate:"omitempty,min=1" yaml:"sector_size"`

	// Size is the disk capacity for drivers that do not take it from the
	// backing medium. Rounded down to whole sectors.
	Size bytesize.ByteSize `mapstructure:"size" yaml:"size,omitempty"`

	ReadOnly bool `mapstructure:"read_only" yaml:"read_only,omitempty"`
	NoCache  bool `mapstructure:"no_cache" yaml:"no_cache,omitempty"`

	// Driver selects the backing driver
	// Valid values: ram, image, object
	Driver string `mapstructure:"driver" validate:"required,oneof=ram image object" yaml:"driver"`

	Image  ImageConfig  `mapstructure:"image" yaml:"image,omitempty"`
	Object ObjectConfig `mapstructure:"object" yaml:"object,omitempty"`

	// RateLimit throttles the driver to emulate slow media
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit,omitempty"`

	// Volumes declares logical volumes carved out of this disk
	Volumes []VolumeConfig `mapstructure:"volumes" validate:"dive" yaml:"volumes,omitempty"`
}

// ImageConfig configures the image file driver.
type ImageConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Create makes a zero-filled image of DiskConfig.Size when Path does
	// not exist.
	Create bool `mapstructure:"create" yaml:"create,omitempty"`
}

// ObjectConfig configures the extent-store driver.
type ObjectConfig struct {
	// Store names an entry of Config.Stores
	Store string `mapstructure:"store" yaml:"store,omitempty"`

	// Volume is the extent key prefix. Defaults to the disk name.
	Volume string `mapstructure:"volume" yaml:"volume,omitempty"`

	// ExtentSize is the size of one stored object
	// Default: 64KiB
	ExtentSize bytesize.ByteSize `mapstructure:"extent_size" yaml:"extent_size,omitempty"`
}

// RateLimitConfig configures bandwidth throttling. Zero disables it.
type RateLimitConfig struct {
	BytesPerSecond bytesize.ByteSize `mapstructure:"bytes_per_second" yaml:"bytes_per_second,omitempty"`
	Burst          bytesize.ByteSize `mapstructure:"burst" yaml:"burst,omitempty"`
}

// VolumeConfig declares a logical volume.
type VolumeConfig struct {
	Name  string `mapstructure:"name" validate:"required" yaml:"name"`
	Start uint64 `mapstructure:"start" yaml:"start"`
	Count uint64 `mapstructure:"count" validate:"required,gt=0" yaml:"count"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOBLK_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  dittoblk init\n\n"+
				"Or specify a custom config file:\n"+
				"  dittoblk <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  dittoblk init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Store credentials may be inlined, keep the file private.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOBLK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOBLK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittoblk/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can use sizes like "1MiB", "64KiB" or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration ("30s", "5m").
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoblk")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittoblk")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
