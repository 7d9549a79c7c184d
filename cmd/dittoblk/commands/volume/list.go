package volume

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List logical volumes",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

// VolumeList is a list of volumes for table rendering.
type VolumeList []apiclient.Volume

// Headers implements TableRenderer.
func (vl VolumeList) Headers() []string {
	return []string{"NAME", "DISK", "START", "SECTORS"}
}

// Rows implements TableRenderer.
func (vl VolumeList) Rows() [][]string {
	rows := make([][]string, 0, len(vl))
	for _, v := range vl {
		rows = append(rows, []string{
			v.Name,
			v.Parent,
			strconv.FormatUint(v.Start, 10),
			strconv.FormatUint(v.Count, 10),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	volumes, err := cmdutil.GetClient().ListVolumes()
	if err != nil {
		return fmt.Errorf("failed to list volumes: %w", err)
	}

	list := VolumeList(volumes)
	return cmdutil.PrintOutput(cmd.OutOrStdout(), list, "No volumes defined.", list)
}
