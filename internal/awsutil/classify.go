// Package awsutil holds the AWS-SDK-specific plumbing shared by the EBS
// direct API adapters: error classification and per-region client
// construction.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ebs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
)

// Classify maps an AWS SDK v2 API error to the taxonomy:
// access-denied errors are terminal, account/snapshot throttling codes
// carry their quota handle, and everything else is a transient RPC error
// eligible for unbounded retry.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ferrors.New(ferrors.ClassTransientRPC, err)
	}

	code := apiErr.ErrorCode()
	switch {
	case code == "UnauthorizedOperation" || code == "AccessDeniedException" || strings.Contains(code, "AccessDenied"):
		return ferrors.New(ferrors.ClassAccessDenied, fmt.Errorf("%w: %s", ferrors.ErrAccessDenied, apiErr.ErrorMessage()))
	case code == "ValidationException" || code == "InvalidParameterValue":
		return ferrors.New(ferrors.ClassValidation, err)
	case code == "RequestThrottledException" && strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "account"):
		return ferrors.New(ferrors.ClassAccountThrottle, err).WithQuota("account")
	case code == "RequestThrottledException" || code == "ThrottlingException":
		return ferrors.New(ferrors.ClassSnapshotThrottle, err).WithQuota("snapshot")
	default:
		return ferrors.New(ferrors.ClassTransientRPC, err)
	}
}

// RegionClients bundles the per-region AWS SDK clients a single shard
// needs: EBS for block transfer, EC2 for snapshot/region metadata, S3 for
// the object-store archival path.
type RegionClients struct {
	EBS *ebs.Client
	EC2 *ec2.Client
	S3  *s3.Client
}

// NewRegionClients loads the default AWS config scoped to region (and,
// when non-empty, profile) and builds one client per service.
func NewRegionClients(ctx context.Context, region, profile, endpointURL string) (RegionClients, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return RegionClients{}, fmt.Errorf("awsutil: load AWS config for %s: %w", region, err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = &endpointURL
		}
	})

	return RegionClients{
		EBS: ebs.NewFromConfig(cfg),
		EC2: ec2.NewFromConfig(cfg),
		S3:  s3Client,
	}, nil
}

// ResolveIdentity calls STS GetCallerIdentity to resolve the caller's
// account and user identity, then calls S3 ListBuckets to recover the
// canonical user id reported in the response's bucket owner, once at
// startup. A caller with no buckets still resolves account/user identity;
// canonicalUserID comes back empty in that case.
func ResolveIdentity(ctx context.Context, region, profile, endpointURL string) (accountID, userID, canonicalUserID string, err error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", "", "", fmt.Errorf("awsutil: load AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", "", Classify(err)
	}
	if out.Account != nil {
		accountID = *out.Account
	}
	if out.UserId != nil {
		userID = *out.UserId
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = &endpointURL
		}
	})
	buckets, err := s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return "", "", "", Classify(err)
	}
	if buckets.Owner != nil && buckets.Owner.ID != nil {
		canonicalUserID = *buckets.Owner.ID
	}
	return accountID, userID, canonicalUserID, nil
}
