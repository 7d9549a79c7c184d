package disk

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a disk",
	Long: `Sync a disk, release its cache and unregister it together with its
logical volumes.

Examples:
  # Remove with confirmation
  dittoblk disk remove hd1

  # Remove without confirmation
  dittoblk disk remove hd1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	client := cmdutil.GetClient()

	return cmdutil.RunWithConfirmation(fmt.Sprintf("Remove disk %s", name), removeForce, func() error {
		if err := client.RemoveDisk(name); err != nil {
			return fmt.Errorf("failed to remove disk: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Disk %s removed", name))
		return nil
	})
}
