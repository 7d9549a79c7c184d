package disk

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoblk/cmd/dittoblk/cmdutil"
)

var (
	readStart  uint64
	readCount  uint64
	readFile   string
	writeStart uint64
	writeFile  string
)

var readCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Read sectors",
	Long: `Read sectors through the disk cache and print them as a hex dump, or
save the raw bytes with --file. Volume names address the volume's own
sectors.

Examples:
  # Dump the boot sector
  dittoblk disk read fd0

  # Save the first 64 sectors of a volume
  dittoblk disk read boot --count 64 --file boot.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write <name>",
	Short: "Write sectors",
	Long: `Write the contents of a file, or of stdin with --file -, starting at a
sector. The data length must be a whole number of sectors.

Examples:
  dittoblk disk write fd0 --file boot.bin
  cat image.bin | dittoblk disk write hd0 --start 2048 --file -`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	readCmd.Flags().Uint64Var(&readStart, "start", 0, "First sector")
	readCmd.Flags().Uint64Var(&readCount, "count", 1, "Number of sectors")
	readCmd.Flags().StringVarP(&readFile, "file", "f", "", "Write raw bytes to this file instead of a hex dump")

	writeCmd.Flags().Uint64Var(&writeStart, "start", 0, "First sector")
	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "", "File to write, - for stdin")
	_ = writeCmd.MarkFlagRequired("file")
}

func runRead(cmd *cobra.Command, args []string) error {
	data, err := cmdutil.GetClient().ReadSectors(args[0], readStart, readCount)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}

	if readFile != "" {
		if err := os.WriteFile(readFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", readFile, err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Read %d bytes into %s", len(data), readFile))
		return nil
	}

	_, err = io.WriteString(cmd.OutOrStdout(), hex.Dump(data))
	return err
}

func runWrite(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if writeFile == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(writeFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if err := cmdutil.GetClient().WriteSectors(args[0], writeStart, data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Wrote %d bytes to %s at sector %d", len(data), args[0], writeStart))
	return nil
}
