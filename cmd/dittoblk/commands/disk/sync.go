package disk

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Write back dirty sectors",
	Long: `Write every dirty cached sector of a disk back to its driver and flush
the driver. With --all every disk is synced.

Examples:
  dittoblk disk sync hd0
  dittoblk disk sync --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <name>",
	Short: "Write back and drop the cache of a disk",
	Long: `Write back the dirty sectors of a disk and discard every cached sector,
so the next reads go to the driver.

Examples:
  dittoblk disk invalidate fd0`,
	Args: cobra.ExactArgs(1),
	RunE: runInvalidate,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync every disk")
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncAll == (len(args) == 1) {
		return errors.New("specify either a disk name or --all")
	}

	var name string
	if !syncAll {
		name = args[0]
	}
	if err := cmdutil.GetClient().Sync(name); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if syncAll {
		cmdutil.PrintSuccess("All disks synced")
	} else {
		cmdutil.PrintSuccess(fmt.Sprintf("Disk %s synced", name))
	}
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	if err := cmdutil.GetClient().Invalidate(args[0]); err != nil {
		return fmt.Errorf("invalidate failed: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Cache of %s invalidated", args[0]))
	return nil
}
