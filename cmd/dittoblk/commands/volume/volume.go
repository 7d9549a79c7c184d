// Package volume implements logical volume commands.
package volume

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for volume management.
var Cmd = &cobra.Command{
	Use:   "volume",
	Short: "Logical volume management",
	Long: `Manage logical volumes on the dittoblk server.

A logical volume is a named sector range of a physical disk. Reads and
writes addressed to a volume are offset by its start sector and bounded
by its length.

Examples:
  # List volumes
  dittoblk volume list

  # Carve a boot partition out of hd0
  dittoblk volume create boot --disk hd0 --start 2048 --count 1048576`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
}
