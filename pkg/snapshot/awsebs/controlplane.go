// Package awsebs adapts the AWS EBS direct APIs' snapshot lifecycle
// (StartSnapshot, CompleteSnapshot) and EC2's descriptive APIs
// (DescribeSnapshots, DescribeRegions) to snapshot.ControlPlane.
package awsebs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ebs"
	"github.com/aws/aws-sdk-go-v2/service/ebs/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/awsutil"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// ControlPlane wraps the EBS direct API's lifecycle calls and EC2's
// describe calls as a single snapshot.ControlPlane.
type ControlPlane struct {
	ebs *ebs.Client
	ec2 *ec2.Client
}

// New builds a ControlPlane bound to a single region's clients.
func New(ebsClient *ebs.Client, ec2Client *ec2.Client) *ControlPlane {
	return &ControlPlane{ebs: ebsClient, ec2: ec2Client}
}

func (c *ControlPlane) DescribeSnapshot(ctx context.Context, id string) (snapshot.Handle, error) {
	out, err := c.ec2.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{SnapshotIds: []string{id}})
	if err != nil {
		return snapshot.Handle{}, awsutil.Classify(err)
	}
	if len(out.Snapshots) == 0 {
		return snapshot.Handle{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("awsebs: snapshot %s not found", id))
	}
	s := out.Snapshots[0]

	progress := 0
	if s.Progress != nil {
		fmt.Sscanf(*s.Progress, "%d%%", &progress)
	}
	state := snapshot.StatePending
	switch s.State {
	case ec2types.SnapshotStateCompleted:
		state = snapshot.StateCompleted
	case ec2types.SnapshotStateError:
		state = snapshot.StateError
	}

	volumeSize := uint64(0)
	if s.VolumeSize != nil {
		volumeSize = uint64(*s.VolumeSize)
	}

	return snapshot.Handle{ID: id, VolumeSizeGiB: volumeSize, State: state, ProgressPercent: progress}, nil
}

func (c *ControlPlane) DescribeRegions(ctx context.Context) ([]string, error) {
	out, err := c.ec2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, awsutil.Classify(err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	return regions, nil
}

func (c *ControlPlane) StartSnapshot(ctx context.Context, params snapshot.StartParams) (snapshot.Handle, error) {
	size := int64(params.VolumeSizeGiB)
	input := &ebs.StartSnapshotInput{VolumeSize: &size}
	if params.ParentSnapshot != "" {
		input.ParentSnapshotId = &params.ParentSnapshot
	}

	out, err := c.ebs.StartSnapshot(ctx, input)
	if err != nil {
		return snapshot.Handle{}, awsutil.Classify(err)
	}

	id := ""
	if out.SnapshotId != nil {
		id = *out.SnapshotId
	}
	volumeSize := uint64(0)
	if out.VolumeSize != nil {
		volumeSize = uint64(*out.VolumeSize)
	}
	return snapshot.Handle{ID: id, VolumeSizeGiB: volumeSize, State: snapshot.StatePending}, nil
}

func (c *ControlPlane) CompleteSnapshot(ctx context.Context, id string, changedBlocksCount uint64) (snapshot.Handle, error) {
	count := int32(changedBlocksCount)
	out, err := c.ebs.CompleteSnapshot(ctx, &ebs.CompleteSnapshotInput{
		SnapshotId:         &id,
		ChangedBlocksCount: &count,
	})
	if err != nil {
		return snapshot.Handle{}, awsutil.Classify(err)
	}

	state := snapshot.StatePending
	if out.Status == types.StatusCompleted {
		state = snapshot.StateCompleted
	}
	return snapshot.Handle{ID: id, State: state, ProgressPercent: 100}, nil
}

func (c *ControlPlane) AbandonSnapshot(ctx context.Context, id string) error {
	_, err := c.ec2.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{SnapshotId: &id})
	if err != nil {
		return awsutil.Classify(err)
	}
	return nil
}

var _ snapshot.ControlPlane = (*ControlPlane)(nil)
