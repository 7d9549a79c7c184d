package disk

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/prompt"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var (
	eraseStart  uint64
	eraseCount  uint64
	erasePasses int
	eraseForce  bool
)

var eraseCmd = &cobra.Command{
	Use:   "erase <name>",
	Short: "Overwrite a sector range",
	Long: `Overwrite a range of sectors. Every pass but the last writes random
data; the last pass writes zeros. Without --count the rest of the disk
from --start is erased.

The disk name must be typed to confirm unless --force is given.

Examples:
  # Zero the whole disk
  dittoblk disk erase fd0

  # Three passes over the first 100 sectors
  dittoblk disk erase hd0 --count 100 --passes 3 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runErase,
}

func init() {
	eraseCmd.Flags().Uint64Var(&eraseStart, "start", 0, "First sector")
	eraseCmd.Flags().Uint64Var(&eraseCount, "count", 0, "Number of sectors (default: to the end of the disk)")
	eraseCmd.Flags().IntVar(&erasePasses, "passes", 1, "Number of overwrite passes")
	eraseCmd.Flags().BoolVarP(&eraseForce, "force", "f", false, "Skip confirmation prompt")
}

func runErase(cmd *cobra.Command, args []string) error {
	name := args[0]
	client := cmdutil.GetClient()

	if erasePasses < 1 {
		return fmt.Errorf("--passes must be at least 1")
	}

	count := eraseCount
	if count == 0 {
		d, err := client.GetDisk(name)
		if err != nil {
			return fmt.Errorf("failed to get disk: %w", err)
		}
		if eraseStart >= d.Sectors {
			return fmt.Errorf("start sector %d is past the end of %s (%d sectors)", eraseStart, name, d.Sectors)
		}
		count = d.Sectors - eraseStart
	}

	if !eraseForce {
		label := fmt.Sprintf("Erase sectors %d-%d of %s", eraseStart, eraseStart+count-1, name)
		ok, err := prompt.ConfirmDanger(label, name)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	req := apiclient.EraseRequest{Start: eraseStart, Count: count, Passes: erasePasses}
	if err := client.Erase(name, req); err != nil {
		return fmt.Errorf("erase failed: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Erased %d sectors of %s", count, name))
	return nil
}
