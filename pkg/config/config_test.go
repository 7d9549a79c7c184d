package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittoblk/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

cache:
  max_size: 64KiB

disks:
  - class: floppy
    removable: true
    driver: ram
    size: 1.44MB
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Cache.MaxSize != 64*bytesize.KiB {
		t.Errorf("Expected cache max_size 64KiB, got %v", cfg.Cache.MaxSize)
	}
	if len(cfg.Disks) != 1 {
		t.Fatalf("Expected 1 disk, got %d", len(cfg.Disks))
	}
	if cfg.Disks[0].SectorSize != DefaultSectorSize {
		t.Errorf("Expected default sector size %d, got %d", DefaultSectorSize, cfg.Disks[0].SectorSize)
	}
	if got := cfg.Disks[0].Size.Sectors(cfg.Disks[0].SectorSize); got != 2812 {
		t.Errorf("Expected 2812 sectors for 1.44MB, got %d", got)
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, `
shutdown_timeout: 5s
daemon:
  idle_timeout: 500ms
  poll_interval: 250ms
  flush_interval: 10s
  motor_classes: [floppy, cdrom]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Daemon.IdleTimeout != 500*time.Millisecond {
		t.Errorf("Expected idle_timeout 500ms, got %v", cfg.Daemon.IdleTimeout)
	}
	if cfg.Daemon.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected poll_interval 250ms, got %v", cfg.Daemon.PollInterval)
	}
	if cfg.Daemon.FlushInterval != 10*time.Second {
		t.Errorf("Expected flush_interval 10s, got %v", cfg.Daemon.FlushInterval)
	}
	if len(cfg.Daemon.MotorClasses) != 2 {
		t.Errorf("Expected 2 motor classes, got %v", cfg.Daemon.MotorClasses)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing file yields the default configuration so the server can run
	// without any setup.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.API.Port != DefaultAPIPort {
		t.Errorf("Expected default API port %d, got %d", DefaultAPIPort, cfg.API.Port)
	}
	if len(cfg.Disks) != 1 || cfg.Disks[0].Driver != "ram" {
		t.Errorf("Expected one default RAM disk, got %+v", cfg.Disks)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidDisk(t *testing.T) {
	configPath := writeConfig(t, `
disks:
  - class: tape
    driver: ram
    size: 1MiB
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown class, got nil")
	}
}

func TestLoad_Stores(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, `
stores:
  - name: local
    type: fs
    fs:
      path: "`+yamlSafePath(dir)+`/extents"
  - name: cloud
    type: s3
    s3:
      bucket: disks
      region: eu-west-1
      force_path_style: true

disks:
  - name: sd0
    class: scsi
    driver: object
    size: 8MiB
    object:
      store: local
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Stores) != 2 {
		t.Fatalf("Expected 2 stores, got %d", len(cfg.Stores))
	}
	if cfg.Stores[1].S3["bucket"] != "disks" {
		t.Errorf("Expected s3 bucket 'disks', got %v", cfg.Stores[1].S3["bucket"])
	}
	if cfg.Disks[0].Object.ExtentSize != DefaultExtentSize {
		t.Errorf("Expected default extent size, got %v", cfg.Disks[0].Object.ExtentSize)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTOBLK_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOBLK_API_PORT", "9191")

	configPath := writeConfig(t, `
logging:
  level: "INFO"

api:
  enabled: true
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.API.Port)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Daemon.FlushInterval = 15 * time.Second
	cfg.Disks = append(cfg.Disks, DiskConfig{
		Name:       "hd0",
		Class:      "hard",
		SectorSize: 4096,
		Size:       16 * bytesize.MiB,
		Driver:     "ram",
		Volumes:    []VolumeConfig{{Name: "boot", Start: 0, Count: 256}},
	})

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Saved config not found: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", loaded.Logging.Level)
	}
	if loaded.Daemon.FlushInterval != 15*time.Second {
		t.Errorf("Expected flush_interval 15s, got %v", loaded.Daemon.FlushInterval)
	}
	if len(loaded.Disks) != 2 || loaded.Disks[1].Size != 16*bytesize.MiB {
		t.Errorf("Expected hd0 with 16MiB, got %+v", loaded.Disks)
	}
	if len(loaded.Disks[1].Volumes) != 1 || loaded.Disks[1].Volumes[0].Count != 256 {
		t.Errorf("Expected boot volume of 256 sectors, got %+v", loaded.Disks[1].Volumes)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := GetDefaultConfigPath()
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
	if DefaultConfigExists() {
		t.Error("Expected no config in an empty XDG_CONFIG_HOME")
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "dittoblk" {
		t.Errorf("Expected directory name 'dittoblk', got %q", filepath.Base(dir))
	}
}
