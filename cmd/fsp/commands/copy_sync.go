package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var copyCmd = &cobra.Command{
	Use:   "copy <snapshot-id>",
	Short: "Replicate a snapshot in full into the destination region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: copy would replicate", args[0], "to", cfg.DestRegion)
			return nil
		}

		e := buildEngine(cfg)
		id, err := e.Copy(context.Background(), args[0], cfg.DestRegion)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var parentInDest string

var syncCmd = &cobra.Command{
	Use:   "sync <snapshot-a> <snapshot-b>",
	Short: "Replicate the blocks that changed between two snapshots into the destination region",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: sync would replicate", args[0], "..", args[1], "to", cfg.DestRegion)
			return nil
		}

		e := buildEngine(cfg)
		id, err := e.Sync(context.Background(), args[0], args[1], parentInDest, cfg.DestRegion)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&parentInDest, "parent", "", "parent snapshot id in the destination region")
}
