package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <snapshot-id>",
	Short: "List the blocks of a snapshot and print its block count and size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: list would enumerate", args[0])
			return nil
		}

		e := buildEngine(cfg)
		summary, err := e.List(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d blocks, %d bytes\n", summary.BlockCount, summary.TotalBytes)
		return nil
	},
}
