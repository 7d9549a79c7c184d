package disk

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var doorCmd = &cobra.Command{
	Use:   "door <name> <open|close|lock|unlock>",
	Short: "Operate the door of a removable drive",
	Long: `Open, close, lock or unlock the door of a removable drive. Opening the
door ejects the media; a locked door cannot be opened.

Examples:
  dittoblk disk door fd0 open
  dittoblk disk door cd0 lock`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"open", "close", "lock", "unlock"},
	RunE:      runDoor,
}

var mediaCmd = &cobra.Command{
	Use:   "media <name>",
	Short: "Show media state",
	Long: `Report whether a drive holds media and whether the media changed since
the last check. Reading the change state clears it.

Examples:
  dittoblk disk media fd0`,
	Args: cobra.ExactArgs(1),
	RunE: runMedia,
}

func doorRequest(action string) (apiclient.DoorRequest, error) {
	yes, no := true, false
	switch action {
	case "open":
		return apiclient.DoorRequest{Open: &yes}, nil
	case "close":
		return apiclient.DoorRequest{Open: &no}, nil
	case "lock":
		return apiclient.DoorRequest{Locked: &yes}, nil
	case "unlock":
		return apiclient.DoorRequest{Locked: &no}, nil
	}
	return apiclient.DoorRequest{}, fmt.Errorf("unknown door action %q (use open, close, lock or unlock)", action)
}

func runDoor(cmd *cobra.Command, args []string) error {
	name, action := args[0], args[1]

	req, err := doorRequest(action)
	if err != nil {
		return err
	}
	if err := cmdutil.GetClient().SetDoor(name, req); err != nil {
		return fmt.Errorf("door %s failed: %w", action, err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Door of %s: %s", name, action))
	return nil
}

type mediaTable apiclient.Media

// Headers implements TableRenderer.
func (m mediaTable) Headers() []string {
	return []string{"DISK", "PRESENT", "CHANGED"}
}

// Rows implements TableRenderer.
func (m mediaTable) Rows() [][]string {
	return [][]string{{m.Name, cmdutil.BoolToYesNo(m.Present), cmdutil.BoolToYesNo(m.Changed)}}
}

func runMedia(cmd *cobra.Command, args []string) error {
	m, err := cmdutil.GetClient().Media(args[0])
	if err != nil {
		return fmt.Errorf("failed to get media state: %w", err)
	}
	return cmdutil.PrintResource(cmd.OutOrStdout(), m, mediaTable(*m))
}
