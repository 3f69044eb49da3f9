package engine

import (
	"context"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockindex"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
)

// Summary is the result of list/diff: a block count and the bytes it
// represents at CHUNK_SIZE granularity.
type Summary struct {
	BlockCount uint64
	TotalBytes uint64
}

// List enumerates every block of snap and reports its size.
func (e *Engine) List(ctx context.Context, snap string) (Summary, error) {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return Summary{}, err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snap); err != nil {
		return Summary{}, err
	}

	rpc, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return Summary{}, err
	}
	blocks, err := blockindex.New(rpc).Enumerate(ctx, snap)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		BlockCount: uint64(len(blocks)),
		TotalBytes: uint64(len(blocks)) * uint64(chunkcodec.Size),
	}, nil
}

// Diff enumerates the blocks that changed between snapA and snapB.
func (e *Engine) Diff(ctx context.Context, snapA, snapB string) (Summary, error) {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return Summary{}, err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snapA, snapB); err != nil {
		return Summary{}, err
	}

	rpc, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return Summary{}, err
	}
	blocks, err := blockindex.New(rpc).EnumerateDiff(ctx, snapA, snapB)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		BlockCount: uint64(len(blocks)),
		TotalBytes: uint64(len(blocks)) * uint64(chunkcodec.Size),
	}, nil
}
