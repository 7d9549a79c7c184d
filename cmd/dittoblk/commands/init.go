package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/bytesize"
	"github.com/marmos91/dittoblk/internal/cli/prompt"
	"github.com/marmos91/dittoblk/pkg/config"
)

var (
	initForce    bool
	initDefaults bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a dittoblk configuration file.

An interactive wizard asks for the first disk (class, size and backing
driver), the extent store of object-backed disks and the API port. Use
--defaults to skip the wizard and write a single 1.44MB floppy RAM disk.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittoblk/config.yaml.
Use --config to specify a custom path.

Examples:
  # Run the wizard
  dittoblk init

  # Write the default configuration without prompting
  dittoblk init --defaults

  # Initialize with custom path, overwriting an existing file
  dittoblk init --config /etc/dittoblk/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "Write the default configuration without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		if initDefaults && !initForce {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite %s", configPath), initForce)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.GetDefaultConfig()
	if !initDefaults {
		if err := runWizard(cfg, filepath.Dir(configPath)); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add disks and volumes")
	fmt.Println("  2. Start the server with: dittoblk start")
	fmt.Printf("  3. Or specify custom config: dittoblk start --config %s\n", configPath)
	fmt.Println("  4. List disks with: dittoblk disk list")
	return nil
}

var classOptions = []prompt.SelectOption{
	{Label: "Floppy", Value: "floppy", Description: "Removable, motor spins down when idle"},
	{Label: "CD-ROM", Value: "cdrom", Description: "Removable, read-only media"},
	{Label: "SCSI", Value: "scsi", Description: "Fixed SCSI disk"},
	{Label: "Hard disk", Value: "hard", Description: "Fixed IDE disk"},
	{Label: "RAM disk", Value: "ram", Description: "Fixed memory disk"},
}

var driverOptions = []prompt.SelectOption{
	{Label: "RAM", Value: "ram", Description: "Contents live in memory and are lost on restart"},
	{Label: "Image file", Value: "image", Description: "Sectors stored in a single file"},
	{Label: "Extent store", Value: "object", Description: "Sectors stored as extents in a named store"},
}

var storeOptions = []prompt.SelectOption{
	{Label: "Memory", Value: "memory", Description: "In-process map, for testing"},
	{Label: "Filesystem", Value: "fs", Description: "One file per extent"},
	{Label: "BadgerDB", Value: "badger", Description: "Embedded key-value database"},
	{Label: "S3", Value: "s3", Description: "S3 compatible object storage"},
}

// runWizard replaces the default disk of cfg with the one described by the
// user. dir is the directory of the config file, used for default paths.
func runWizard(cfg *config.Config, dir string) error {
	class, err := prompt.Select("Disk class", classOptions)
	if err != nil {
		return err
	}

	defaultSize := 64 * bytesize.MiB
	if class == "floppy" {
		defaultSize = 1440 * bytesize.KiB
	}
	size, err := prompt.InputSize("Disk size", defaultSize, config.DefaultSectorSize)
	if err != nil {
		return err
	}

	drv, err := prompt.Select("Backing driver", driverOptions)
	if err != nil {
		return err
	}

	dc := config.DiskConfig{
		Class:     class,
		Removable: class == "floppy" || class == "cdrom",
		ReadOnly:  class == "cdrom",
		Size:      size,
		Driver:    drv,
	}

	switch drv {
	case "image":
		path, err := prompt.Input("Image path", filepath.Join(dir, class+".img"))
		if err != nil {
			return err
		}
		dc.Image = config.ImageConfig{Path: path, Create: true}
	case "object":
		store, err := storeWizard(dir)
		if err != nil {
			return err
		}
		cfg.Stores = []config.StoreConfig{store}
		dc.Object = config.ObjectConfig{Store: store.Name}
	}
	cfg.Disks = []config.DiskConfig{dc}

	motor, err := prompt.MultiSelect("Stop motors of idle disks of class", classOptions, cfg.Daemon.MotorClasses...)
	if err != nil {
		return err
	}
	cfg.Daemon.MotorClasses = motor

	port, err := prompt.InputPort("API port", cfg.API.Port)
	if err != nil {
		return err
	}
	cfg.API.Port = port

	config.ApplyDefaults(cfg)
	return nil
}

func storeWizard(dir string) (config.StoreConfig, error) {
	typ, err := prompt.Select("Extent store", storeOptions)
	if err != nil {
		return config.StoreConfig{}, err
	}
	store := config.StoreConfig{Name: "default", Type: typ}

	switch typ {
	case "fs":
		path, err := prompt.Input("Extent directory", filepath.Join(dir, "extents"))
		if err != nil {
			return store, err
		}
		store.FS = map[string]any{"path": path}
	case "badger":
		path, err := prompt.Input("Database directory", filepath.Join(dir, "badger"))
		if err != nil {
			return store, err
		}
		store.Badger = map[string]any{"dir": path}
	case "s3":
		s3, err := s3Wizard()
		if err != nil {
			return store, err
		}
		store.S3 = s3
	}
	return store, nil
}

func s3Wizard() (map[string]any, error) {
	bucket, err := prompt.InputWithValidation("Bucket", "", func(s string) error {
		if s == "" {
			return errors.New("bucket is required")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	region, err := prompt.Input("Region", "us-east-1")
	if err != nil {
		return nil, err
	}
	endpoint, err := prompt.Input("Endpoint (empty for AWS)", "")
	if err != nil {
		return nil, err
	}
	accessKey, err := prompt.Input("Access key ID (empty for the default credential chain)", "")
	if err != nil {
		return nil, err
	}

	s3 := map[string]any{
		"bucket": bucket,
		"region": region,
	}
	if endpoint != "" {
		s3["endpoint"] = endpoint
		s3["force_path_style"] = true
	}
	if accessKey != "" {
		secret, err := prompt.Secret("Secret access key")
		if err != nil {
			return nil, err
		}
		s3["access_key_id"] = accessKey
		s3["secret_access_key"] = secret
	}
	return s3, nil
}
