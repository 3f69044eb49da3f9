package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <snapshot-a> <snapshot-b>",
	Short: "List the blocks that changed between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: diff would compare", args[0], args[1])
			return nil
		}

		e := buildEngine(cfg)
		summary, err := e.Diff(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d blocks changed, %d bytes\n", summary.BlockCount, summary.TotalBytes)
		return nil
	},
}
