package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dittoblk configuration file.

Checks for syntax errors, missing required fields, invalid values, disks
that reference undeclared stores and volumes that do not fit their disk.

Examples:
  # Validate default config
  dittoblk config validate

  # Validate specific config file
  dittoblk config validate --config /etc/dittoblk/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(w, "Validation: OK")

	if warnings := lint(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, msg := range warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", msg)
		}
	}

	volumes := 0
	for _, d := range cfg.Disks {
		volumes += len(d.Volumes)
	}

	_, _ = fmt.Fprintf(w, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(w, "  Disks:           %d\n", len(cfg.Disks))
	_, _ = fmt.Fprintf(w, "  Volumes:         %d\n", volumes)
	_, _ = fmt.Fprintf(w, "  Stores:          %d\n", len(cfg.Stores))
	_, _ = fmt.Fprintf(w, "  Cache size:      %s\n", cfg.Cache.MaxSize)
	_, _ = fmt.Fprintf(w, "  API port:        %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(w, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

// lint reports settings that load fine but are probably mistakes.
func lint(cfg *config.Config) []string {
	var warnings []string

	if len(cfg.Disks) == 0 {
		warnings = append(warnings, "No disks configured")
	}
	if !cfg.API.Enabled {
		warnings = append(warnings, "API server disabled - disk and volume commands will not work")
	}
	if cfg.Cache.Verify {
		warnings = append(warnings, "cache.verify is enabled - every cache operation runs a full consistency check")
	}

	used := make(map[string]bool)
	for _, d := range cfg.Disks {
		if d.Driver == "object" {
			used[d.Object.Store] = true
		}
	}
	for _, s := range cfg.Stores {
		if !used[s.Name] {
			warnings = append(warnings, fmt.Sprintf("Store %q is not used by any disk", s.Name))
		}
	}
	return warnings
}
