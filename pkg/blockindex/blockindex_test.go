package blockindex

import (
	"context"
	"testing"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockapi"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

type pagedClient struct {
	pages     [][]snapshot.Block
	diffPages [][]snapshot.Block
}

func (c *pagedClient) GetBlock(ctx context.Context, snapshotID string, index uint32, readToken string) ([]byte, string, error) {
	return nil, "", nil
}

func (c *pagedClient) PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) (bool, error) {
	return true, nil
}

func (c *pagedClient) ListBlocks(ctx context.Context, snapshotID string, cursor string) (snapshot.Page, error) {
	i := 0
	if cursor != "" {
		i = int(cursor[0] - '0')
	}
	if i >= len(c.pages) {
		return snapshot.Page{}, nil
	}
	next := ""
	if i+1 < len(c.pages) {
		next = string(rune('0' + i + 1))
	}
	return snapshot.Page{Blocks: c.pages[i], Cursor: next}, nil
}

func (c *pagedClient) ListChangedBlocks(ctx context.Context, a, b, cursor string) (snapshot.Page, error) {
	i := 0
	if cursor != "" {
		i = int(cursor[0] - '0')
	}
	if i >= len(c.diffPages) {
		return snapshot.Page{}, nil
	}
	next := ""
	if i+1 < len(c.diffPages) {
		next = string(rune('0' + i + 1))
	}
	return snapshot.Page{Blocks: c.diffPages[i], Cursor: next}, nil
}

func TestEnumerateFlattensPagesInOrder(t *testing.T) {
	client := &pagedClient{pages: [][]snapshot.Block{
		{{Index: 0}, {Index: 1}},
		{{Index: 2}},
	}}
	src := New(blockapi.New(client, blockapi.LoggerSink{}))

	blocks, err := src.Enumerate(context.Background(), "snap-a")
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, indices(blocks))
}

func TestEnumerateDiffFallsBackToFullListingWhenSnapBEmpty(t *testing.T) {
	client := &pagedClient{pages: [][]snapshot.Block{{{Index: 5}}}}
	src := New(blockapi.New(client, blockapi.LoggerSink{}))

	blocks, err := src.EnumerateDiff(context.Background(), "snap-a", "")
	require.NoError(t, err)
	require.Equal(t, []uint32{5}, indices(blocks))
}

func TestEnumerateDiffFlagsMissingPeerReadToken(t *testing.T) {
	client := &pagedClient{diffPages: [][]snapshot.Block{
		{
			{Index: 0, ReadToken: "a0", PeerReadToken: "b0"},
			{Index: 1, ReadToken: "a1"},
		},
	}}
	src := New(blockapi.New(client, blockapi.LoggerSink{}))

	blocks, err := src.EnumerateDiff(context.Background(), "snap-a", "snap-b")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.False(t, blocks[0].FromSnapshotA)
	require.True(t, blocks[1].FromSnapshotA)
}

func indices(blocks []snapshot.Block) []uint32 {
	out := make([]uint32, len(blocks))
	for i, b := range blocks {
		out[i] = b.Index
	}
	return out
}
