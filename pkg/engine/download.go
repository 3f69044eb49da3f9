package engine

import (
	"context"
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockindex"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/shardedexec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// Download writes every block of snap to path, eliding sparse blocks unless
// FullCopy is set.
func (e *Engine) Download(ctx context.Context, snap, path string) error {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snap); err != nil {
		return err
	}
	if sink, err := preflight.OpenSink(path); err != nil {
		return err
	} else {
		sink.Close()
	}

	listRPC, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return err
	}
	blocks, err := blockindex.New(listRPC).Enumerate(ctx, snap)
	if err != nil {
		return err
	}

	degree := e.Cfg.ResolveJobs()
	if err := shardedexec.Run(ctx, blocks, degree, degree, func(shardIdx int) (shardedexec.Task[snapshot.Block], error) {
		rpc, err := e.newRPC(e.Cfg.SourceRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, b snapshot.Block) error {
			chunk, checksum, err := getVerifiedChunk(ctx, rpc, snap, b.Index, b.ReadToken)
			if err != nil {
				return err
			}
			if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
				return nil
			}
			return writeChunkAt(path, b.Index, chunk)
		}, nil
	}); err != nil {
		return err
	}

	// Elided trailing blocks leave a regular-file sink short; extend it
	// (without writing) so every listed block's offset reads back.
	var end int64
	for _, b := range blocks {
		end = max(end, (int64(b.Index)+1)*chunkcodec.Size)
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() < end {
		return os.Truncate(path, end)
	}
	return nil
}

// DeltaDownload writes the changed blocks between snapA and snapB to path.
// Sparse suppression is disabled here: every changed block is written,
// including ones whose content happens to be all-zero.
func (e *Engine) DeltaDownload(ctx context.Context, snapA, snapB, path string) error {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snapA, snapB); err != nil {
		return err
	}
	if sink, err := preflight.OpenSink(path); err != nil {
		return err
	} else {
		sink.Close()
	}

	listRPC, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return err
	}
	blocks, err := blockindex.New(listRPC).EnumerateDiff(ctx, snapA, snapB)
	if err != nil {
		return err
	}

	degree := e.Cfg.ResolveJobs()
	return shardedexec.Run(ctx, blocks, degree, degree, func(shardIdx int) (shardedexec.Task[snapshot.Block], error) {
		rpc, err := e.newRPC(e.Cfg.SourceRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, b snapshot.Block) error {
			source := snapB
			if b.FromSnapshotA {
				source = snapA
			}
			chunk, _, err := getVerifiedChunk(ctx, rpc, source, b.Index, readTokenFor(b))
			if err != nil {
				return err
			}
			return writeChunkAt(path, b.Index, chunk)
		}, nil
	})
}
