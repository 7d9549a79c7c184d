// Package disk implements disk management commands.
package disk

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for disk management.
var Cmd = &cobra.Command{
	Use:   "disk",
	Short: "Disk management",
	Long: `Inspect and operate the disks of a running dittoblk server.

Disks are addressed by name (fd0, hd1, ...). Logical volume names are
accepted wherever a disk name is and resolve to their physical disk,
except for read and write, which address the volume's own sectors.

Examples:
  # List disks
  dittoblk disk list

  # Show one disk with its cache state
  dittoblk disk show fd0

  # Write back every cache
  dittoblk disk sync --all

  # Eject a floppy
  dittoblk disk door fd0 open`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(statsCmd)
	Cmd.AddCommand(syncCmd)
	Cmd.AddCommand(invalidateCmd)
	Cmd.AddCommand(flagsCmd)
	Cmd.AddCommand(eraseCmd)
	Cmd.AddCommand(readCmd)
	Cmd.AddCommand(writeCmd)
	Cmd.AddCommand(doorCmd)
	Cmd.AddCommand(mediaCmd)
	Cmd.AddCommand(removeCmd)
}
