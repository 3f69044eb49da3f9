package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var moveToS3Cmd = &cobra.Command{
	Use:   "movetos3 <snapshot-id>",
	Short: "Archive a snapshot's blocks as compressed segments in the object store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.Bucket == "" {
			return fmt.Errorf("movetos3: --bucket is required")
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: movetos3 would archive", args[0], "to", cfg.Bucket)
			return nil
		}

		ctx := context.Background()
		store, err := buildObjectStore(ctx, cfg, cfg.SourceRegion)
		if err != nil {
			return err
		}

		e := buildEngine(cfg)
		prefix, err := e.MoveToS3(ctx, args[0], store)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prefix)
		return nil
	},
}

var getFromS3Cmd = &cobra.Command{
	Use:   "getfroms3 <key-prefix>",
	Short: "Restore a snapshot archived by movetos3 into a new destination snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.Bucket == "" {
			return fmt.Errorf("getfroms3: --bucket is required")
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: getfroms3 would restore", args[0], "into", cfg.DestRegion)
			return nil
		}

		ctx := context.Background()
		store, err := buildObjectStore(ctx, cfg, cfg.DestRegion)
		if err != nil {
			return err
		}

		e := buildEngine(cfg)
		id, err := e.GetFromS3(ctx, args[0], cfg.DestRegion, store)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
