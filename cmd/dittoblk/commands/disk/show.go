package disk

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/output"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show disk details",
	Long: `Show the geometry, capabilities, flags and cache state of a disk.

Examples:
  dittoblk disk show fd0
  dittoblk disk show hd0 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func detail(d *apiclient.Disk) output.Fields {
	return output.Fields{}.
		Add("Name", d.Name).
		Add("ID", d.ID).
		Add("Class", d.Class).
		Add("Driver", d.Driver).
		Add("Removable", cmdutil.BoolToYesNo(d.Removable)).
		Add("Geometry", output.Geometry(d.Sectors, d.SectorSize)).
		Add("Flags", d.Flags).
		Add("Capabilities", capabilities(d.Capabilities)).
		Add("Cache", fmt.Sprintf("%d buffers, %d dirty, %s of %s",
			d.Cache.Buffers, d.Cache.Dirty, output.Bytes(d.Cache.Size), output.Bytes(d.Cache.MaxSize))).
		Add("Last access", output.Ago(d.LastAccess))
}

func capabilities(c apiclient.Capabilities) string {
	var caps []string
	for _, kv := range []struct {
		name string
		on   bool
	}{
		{"read", c.Read},
		{"write", c.Write},
		{"flush", c.Flush},
		{"motor", c.Motor},
		{"door", c.Door},
		{"door-lock", c.DoorLock},
		{"change", c.Change},
	} {
		if kv.on {
			caps = append(caps, kv.name)
		}
	}
	return cmdutil.EmptyOr(strings.Join(caps, ","), "none")
}

func runShow(cmd *cobra.Command, args []string) error {
	d, err := cmdutil.GetClient().GetDisk(args[0])
	if err != nil {
		return fmt.Errorf("failed to get disk: %w", err)
	}
	return cmdutil.PrintResource(cmd.OutOrStdout(), d, detail(d))
}
