package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var parentSnapshot string

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Read a local file or device and create a new snapshot from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: upload would read", args[0])
			return nil
		}

		e := buildEngine(cfg)
		id, err := e.Upload(context.Background(), args[0], parentSnapshot)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&parentSnapshot, "parent", "", "parent snapshot id for an incremental upload")
}
