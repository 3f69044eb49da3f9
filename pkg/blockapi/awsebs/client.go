// Package awsebs adapts the AWS EBS direct APIs (GetSnapshotBlock,
// PutSnapshotBlock, ListSnapshotBlocks, ListChangedBlocks) to
// pkg/blockapi.Client: a thin struct wrapping an AWS SDK v2 client.
package awsebs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/ebs"
	"github.com/aws/aws-sdk-go-v2/service/ebs/types"
	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/awsutil"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// Client wraps an *ebs.Client as a pkg/blockapi.Client.
type Client struct {
	ebs *ebs.Client
}

// New builds a Client over an EBS direct API client.
func New(ebsClient *ebs.Client) *Client {
	return &Client{ebs: ebsClient}
}

func (c *Client) GetBlock(ctx context.Context, snapshotID string, index uint32, readToken string) ([]byte, string, error) {
	i32 := int32(index)
	out, err := c.ebs.GetSnapshotBlock(ctx, &ebs.GetSnapshotBlockInput{
		SnapshotId: &snapshotID,
		BlockIndex: &i32,
		BlockToken: &readToken,
	})
	if err != nil {
		return nil, "", awsutil.Classify(err)
	}
	defer out.BlockData.Close()

	buf := make([]byte, chunkcodec.Size)
	n, err := io.ReadFull(out.BlockData, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", ferrors.New(ferrors.ClassTransientRPC, fmt.Errorf("awsebs: read block data: %w", err))
	}

	checksum := ""
	if out.Checksum != nil {
		checksum = *out.Checksum
	}
	return chunkcodec.Pad(buf[:n]), checksum, nil
}

func (c *Client) PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) (bool, error) {
	i32 := int32(index)
	length := int32(len(chunk))
	algo := types.ChecksumAlgorithmChecksumAlgorithmSha256
	_, err := c.ebs.PutSnapshotBlock(ctx, &ebs.PutSnapshotBlockInput{
		SnapshotId:        &snapshotID,
		BlockIndex:        &i32,
		BlockData:         bytes.NewReader(chunk),
		Checksum:          &checksum,
		ChecksumAlgorithm: algo,
		DataLength:        &length,
	})
	if err != nil {
		return false, awsutil.Classify(err)
	}
	return true, nil
}

func (c *Client) ListBlocks(ctx context.Context, snapshotID string, cursor string) (snapshot.Page, error) {
	input := &ebs.ListSnapshotBlocksInput{SnapshotId: &snapshotID}
	if cursor != "" {
		input.NextToken = &cursor
	}
	out, err := c.ebs.ListSnapshotBlocks(ctx, input)
	if err != nil {
		return snapshot.Page{}, awsutil.Classify(err)
	}

	blocks := make([]snapshot.Block, len(out.Blocks))
	for i, b := range out.Blocks {
		blocks[i] = snapshot.Block{Index: uint32(derefI32(b.BlockIndex)), ReadToken: derefStr(b.BlockToken)}
	}
	next := ""
	if out.NextToken != nil {
		next = *out.NextToken
	}
	return snapshot.Page{Blocks: blocks, Cursor: next}, nil
}

func (c *Client) ListChangedBlocks(ctx context.Context, snapshotIDA, snapshotIDB string, cursor string) (snapshot.Page, error) {
	input := &ebs.ListChangedBlocksInput{FirstSnapshotId: &snapshotIDA, SecondSnapshotId: &snapshotIDB}
	if cursor != "" {
		input.NextToken = &cursor
	}
	out, err := c.ebs.ListChangedBlocks(ctx, input)
	if err != nil {
		return snapshot.Page{}, awsutil.Classify(err)
	}

	blocks := make([]snapshot.Block, len(out.ChangedBlocks))
	for i, b := range out.ChangedBlocks {
		blocks[i] = snapshot.Block{
			Index:         uint32(derefI32(b.BlockIndex)),
			ReadToken:     derefStr(b.FirstBlockToken),
			PeerReadToken: derefStr(b.SecondBlockToken),
		}
	}
	next := ""
	if out.NextToken != nil {
		next = *out.NextToken
	}
	return snapshot.Page{Blocks: blocks, Cursor: next}, nil
}

func derefI32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
