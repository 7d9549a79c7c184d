package disk

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/output"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all disks",
	Long: `List the physical disks registered on the dittoblk server.

Examples:
  # List disks as table
  dittoblk disk list

  # List as JSON
  dittoblk disk list -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// DiskList is a list of disks for table rendering.
type DiskList []apiclient.Disk

// Headers implements TableRenderer.
func (dl DiskList) Headers() []string {
	return []string{"NAME", "CLASS", "DRIVER", "SIZE", "FLAGS", "CACHED", "DIRTY", "LAST ACCESS"}
}

// Rows implements TableRenderer.
func (dl DiskList) Rows() [][]string {
	rows := make([][]string, 0, len(dl))
	for _, d := range dl {
		rows = append(rows, []string{
			d.Name,
			d.Class,
			d.Driver,
			output.Bytes(d.Bytes()),
			d.Flags,
			output.Bytes(d.Cache.Size),
			fmt.Sprintf("%d", d.Cache.Dirty),
			output.Ago(d.LastAccess),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	disks, err := cmdutil.GetClient().ListDisks()
	if err != nil {
		return fmt.Errorf("failed to list disks: %w", err)
	}

	list := DiskList(disks)
	return cmdutil.PrintOutput(cmd.OutOrStdout(), list, "No disks registered.", list)
}
