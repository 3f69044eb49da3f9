// Package commands implements the fsp CLI command tree: one subcommand per
// TransferEngine operation, plus the flag parsing and AWS
// client wiring describes as the "External interfaces".
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/internal/awsutil"
	"github.com/awslabs/flexible-snapshot-proxy/internal/config"
	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/logger"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockapi"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockapi/awsebs"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/engine"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	snapshotawsebs "github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot/awsebs"
	"github.com/spf13/cobra"
)

// Global flag values, shared by every subcommand.
var (
	sourceRegion string
	destRegion   string
	jobs         int
	fullCopy     bool
	bucket       string
	endpointURL  string
	profile      string
	verbosity    int
	quiet        bool
	dryRun       bool
	noDeps       bool
)

// rootCmd is the base command when fsp is invoked with no subcommand.
var rootCmd = &cobra.Command{
	Use:   "fsp",
	Short: "flexible-snapshot-proxy - a high-throughput block snapshot transfer client",
	Long: `fsp moves block-addressable snapshot content between a snapshot
service, local files, and object-store archives, using a sharded
concurrent transfer engine over the Block API.

Use "fsp [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := verbosity
		if quiet {
			v = -1
		}
		logger.SetVerbosity(logger.Verbosity(v))
		level := "info"
		if v >= int(logger.VerbosityBlock) {
			level = "debug"
		} else if v <= int(logger.VerbosityQuiet) {
			level = "error"
		}
		return logger.Init(logger.Config{Level: level})
	},
}

// Execute runs the command tree. Called once from main.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fsp: %v\n", err)
		return ferrors.Classify(err).ExitCode()
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&sourceRegion, "source-region", "o", "", "source region (required)")
	rootCmd.PersistentFlags().StringVarP(&destRegion, "dest-region", "d", "", "destination region (default: source region)")
	rootCmd.PersistentFlags().IntVarP(&jobs, "jobs", "j", 0, "outer shard degree (default: 16 same-region, 27 cross-region)")
	rootCmd.PersistentFlags().BoolVar(&fullCopy, "full-copy", false, "write sparse (all-zero) blocks instead of eliding them")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "object-store bucket (movetos3/getfroms3)")
	rootCmd.PersistentFlags().StringVar(&endpointURL, "endpoint-url", "", "override the object-store endpoint URL")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS shared config profile")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-vv enables debug-level logging, -vvv also logs the first failed attempt of every retry)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all but fatal diagnostics")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "validate preflight checks and exit without transferring data")
	rootCmd.PersistentFlags().BoolVar(&noDeps, "no-deps", false, "no-op, preserved for source CLI compatibility")
	_ = rootCmd.MarkPersistentFlagRequired("source-region")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(deltaDownloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(multiCloneCmd)
	rootCmd.AddCommand(fanoutCmd)
	rootCmd.AddCommand(moveToS3Cmd)
	rootCmd.AddCommand(getFromS3Cmd)
}

// buildConfig assembles and validates the immutable Config record from the
// parsed global flags.
func buildConfig() (config.Config, error) {
	cfg := config.Config{
		SourceRegion:           sourceRegion,
		Jobs:                   jobs,
		FullCopy:               fullCopy,
		Bucket:                 bucket,
		ObjectStoreEndpointURL: endpointURL,
		ObjectStoreProfile:     profile,
		Verbosity:              verbosity,
		DryRun:                 dryRun,
		NoDeps:                 noDeps,
	}
	if quiet {
		cfg.Verbosity = -1
	}
	cfg = cfg.WithDestRegion(destRegion)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, ferrors.New(ferrors.ClassValidation, err)
	}
	return cfg, nil
}

// resolveIdentityAndRegions resolves the caller's AWS identity via STS (and,
// for the object-store path, the canonical user id via S3) and validates
// that both the source and destination regions are enabled for this
// account, via the source region's control plane. It runs ahead of the
// dry-run early return, since --dry-run promises to validate preflight
// checks without moving data.
func resolveIdentityAndRegions(ctx context.Context, cfg config.Config) (config.Config, error) {
	accountID, userID, canonicalUserID, err := awsutil.ResolveIdentity(ctx, cfg.SourceRegion, cfg.ObjectStoreProfile, cfg.ObjectStoreEndpointURL)
	if err != nil {
		return config.Config{}, err
	}
	cfg.AccountID = accountID
	cfg.UserID = userID
	cfg.CanonicalUserID = canonicalUserID

	cp, err := (awsControlPlaneFactory{profile: cfg.ObjectStoreProfile}).NewControlPlane(cfg.SourceRegion)
	if err != nil {
		return config.Config{}, err
	}
	if err := preflight.CheckRegionsValid(ctx, cp, cfg.SourceRegion, cfg.DestRegion); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// prepareConfig builds and validates Config, then resolves identity and
// region validity against AWS. Every subcommand calls this instead of
// buildConfig directly; buildConfig alone stays pure so config_test.go can
// exercise flag parsing without live AWS calls.
func prepareConfig(ctx context.Context) (config.Config, error) {
	cfg, err := buildConfig()
	if err != nil {
		return config.Config{}, err
	}
	return resolveIdentityAndRegions(ctx, cfg)
}

// awsClientFactory builds one EBS-backed blockapi.Client per region,
// satisfying engine.ClientFactory.
type awsClientFactory struct {
	profile     string
	endpointURL string
}

func (f awsClientFactory) NewClient(region string) (blockapi.Client, error) {
	clients, err := awsutil.NewRegionClients(context.Background(), region, f.profile, f.endpointURL)
	if err != nil {
		return nil, err
	}
	return awsebs.New(clients.EBS), nil
}

// awsControlPlaneFactory builds one EBS+EC2-backed snapshot.ControlPlane
// per region, satisfying engine.ControlPlaneFactory.
type awsControlPlaneFactory struct {
	profile string
}

func (f awsControlPlaneFactory) NewControlPlane(region string) (snapshot.ControlPlane, error) {
	clients, err := awsutil.NewRegionClients(context.Background(), region, f.profile, "")
	if err != nil {
		return nil, err
	}
	return snapshotawsebs.New(clients.EBS, clients.EC2), nil
}

// buildEngine wires the AWS-backed factories into a new Engine.
func buildEngine(cfg config.Config) *engine.Engine {
	return engine.New(
		awsClientFactory{profile: cfg.ObjectStoreProfile, endpointURL: cfg.ObjectStoreEndpointURL},
		awsControlPlaneFactory{profile: cfg.ObjectStoreProfile},
		cfg,
	)
}
