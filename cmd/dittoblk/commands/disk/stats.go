package disk

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
	"github.com/marmos91/dittoblk/internal/cli/output"
	"github.com/marmos91/dittoblk/pkg/apiclient"
)

var statsCmd = &cobra.Command{
	Use:   "stats [name]",
	Short: "Show I/O statistics",
	Long: `Show accumulated read and write statistics of a disk. Without a name
the statistics of all disks are summed.

Examples:
  dittoblk disk stats fd0
  dittoblk disk stats -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

type statsTable struct {
	name  string
	stats *apiclient.DiskStats
}

// Headers implements TableRenderer.
func (s statsTable) Headers() []string {
	return []string{"DISK", "READS", "READ", "READ TIME", "WRITES", "WRITTEN", "WRITE TIME"}
}

// Rows implements TableRenderer.
func (s statsTable) Rows() [][]string {
	return [][]string{{
		s.name,
		strconv.FormatUint(s.stats.Reads, 10),
		output.KiBytes(s.stats.ReadKB),
		output.Millis(s.stats.ReadTime),
		strconv.FormatUint(s.stats.Writes, 10),
		output.KiBytes(s.stats.WriteKB),
		output.Millis(s.stats.WriteTime),
	}}
}

func runStats(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) == 1 {
		name = args[0]
	}

	stats, err := cmdutil.GetClient().DiskStats(name)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	return cmdutil.PrintResource(cmd.OutOrStdout(), stats, statsTable{name: cmdutil.EmptyOr(name, "(all)"), stats: stats})
}
