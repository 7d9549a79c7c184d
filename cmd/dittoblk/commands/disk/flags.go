package disk

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var (
	flagsOn  string
	flagsOff string
)

var flagsCmd = &cobra.Command{
	Use:   "flags <name>",
	Short: "Show or change disk flags",
	Long: `Show the flags of a disk, or set and clear them.

Only readonly and nocache can be changed. Clearing nocache leaves an empty
cache; setting it writes back and drops the current cache first.

Examples:
  # Show flags
  dittoblk disk flags fd0

  # Write-protect a disk
  dittoblk disk flags fd0 --on readonly

  # Bypass the cache
  dittoblk disk flags hd0 --on nocache --off readonly`,
	Args: cobra.ExactArgs(1),
	RunE: runFlags,
}

func init() {
	flagsCmd.Flags().StringVar(&flagsOn, "on", "", "Comma separated flags to set (readonly,nocache)")
	flagsCmd.Flags().StringVar(&flagsOff, "off", "", "Comma separated flags to clear (readonly,nocache)")
}

type flagsTable apiclient.DiskFlags

// Headers implements TableRenderer.
func (f flagsTable) Headers() []string {
	return []string{"DISK", "FLAGS"}
}

// Rows implements TableRenderer.
func (f flagsTable) Rows() [][]string {
	return [][]string{{f.Name, f.Flags}}
}

func runFlags(cmd *cobra.Command, args []string) error {
	name := args[0]
	client := cmdutil.GetClient()

	on := cmdutil.ParseCommaSeparatedList(flagsOn)
	off := cmdutil.ParseCommaSeparatedList(flagsOff)
	for _, f := range on {
		for _, g := range off {
			if f == g {
				return fmt.Errorf("flag %q given to both --on and --off", f)
			}
		}
	}

	var (
		result *apiclient.DiskFlags
		err    error
	)
	if len(off) > 0 {
		result, err = client.SetFlags(name, apiclient.SetFlagsRequest{Flags: strings.Join(off, ","), On: false})
		if err != nil {
			return fmt.Errorf("failed to clear flags: %w", err)
		}
	}
	if len(on) > 0 {
		result, err = client.SetFlags(name, apiclient.SetFlagsRequest{Flags: strings.Join(on, ","), On: true})
		if err != nil {
			return fmt.Errorf("failed to set flags: %w", err)
		}
	}
	if result == nil {
		result, err = client.GetFlags(name)
		if err != nil {
			return fmt.Errorf("failed to get flags: %w", err)
		}
	}

	return cmdutil.PrintResource(cmd.OutOrStdout(), result, flagsTable(*result))
}
