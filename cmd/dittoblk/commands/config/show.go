package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/output"
	"github.com/marmos91/dittoblk/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective dittoblk configuration, with defaults applied
and environment overrides (DITTOBLK_*) resolved.

Outputs YAML unless --output json is given.

Examples:
  # Show the default config file
  dittoblk config show

  # Show as JSON
  dittoblk config show -o json

  # Show specific config file
  dittoblk config show --config /etc/dittoblk/config.yaml`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}
