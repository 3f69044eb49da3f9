package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <snapshot-id> <path>",
	Short: "Write every block of a snapshot to a local file or device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: download would write", args[0], "to", args[1])
			return nil
		}

		e := buildEngine(cfg)
		if err := e.Download(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[0])
		return nil
	},
}

var deltaDownloadCmd = &cobra.Command{
	Use:   "deltadownload <snapshot-a> <snapshot-b> <path>",
	Short: "Write the blocks that changed between two snapshots to a local file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: deltadownload would write", args[0], "..", args[1], "to", args[2])
			return nil
		}

		e := buildEngine(cfg)
		if err := e.DeltaDownload(context.Background(), args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[1])
		return nil
	},
}
