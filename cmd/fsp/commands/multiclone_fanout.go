package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var multiCloneCmd = &cobra.Command{
	Use:   "multiclone <snapshot-id> <path> [path...]",
	Short: "Write every block of a snapshot to multiple local files at once",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: multiclone would write", args[0], "to", strings.Join(args[1:], ", "))
			return nil
		}

		e := buildEngine(cfg)
		if err := e.MultiClone(context.Background(), args[0], args[1:]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[0])
		return nil
	},
}

var fanoutRegions []string

var fanoutCmd = &cobra.Command{
	Use:   "fanout <path>",
	Short: "Read a local file once and create a new snapshot from it in every given region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := prepareConfig(context.Background())
		if err != nil {
			return err
		}
		if len(fanoutRegions) == 0 {
			return fmt.Errorf("fanout: --region is required at least once")
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "dry-run: fanout would read", args[0], "into", strings.Join(fanoutRegions, ", "))
			return nil
		}

		e := buildEngine(cfg)
		results, err := e.Fanout(context.Background(), args[0], fanoutRegions)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
	},
}

func init() {
	fanoutCmd.Flags().StringArrayVar(&fanoutRegions, "region", nil, "destination region (repeatable)")
}
