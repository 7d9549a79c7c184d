package volume

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/prompt"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var (
	createDisk  string
	createStart uint64
	createCount uint64
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a logical volume",
	Long: `Define a logical volume over a sector range of a physical disk. The
range must lie within the disk and the name must not collide with any
disk or volume.

Examples:
  dittoblk volume create boot --disk hd0 --start 2048 --count 1048576`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createDisk, "disk", "", "Physical disk to carve the volume from")
	createCmd.Flags().Uint64Var(&createStart, "start", 0, "First sector on the disk")
	createCmd.Flags().Uint64Var(&createCount, "count", 0, "Number of sectors")
	_ = createCmd.MarkFlagRequired("disk")
	_ = createCmd.MarkFlagRequired("count")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if err := prompt.ValidateName(args[0]); err != nil {
		return fmt.Errorf("invalid volume name: %w", err)
	}

	v, err := cmdutil.GetClient().CreateVolume(apiclient.Volume{
		Name:   args[0],
		Parent: createDisk,
		Start:  createStart,
		Count:  createCount,
	})
	if err != nil {
		return fmt.Errorf("failed to create volume: %w", err)
	}

	return cmdutil.PrintResource(cmd.OutOrStdout(), v, VolumeList{*v})
}
