package engine

import (
	"context"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockindex"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/shardedexec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// Copy replicates snap in full into a new snapshot in destRegion. Each shard worker holds a source-region client and a
// destination-region client, never shared across shards.
func (e *Engine) Copy(ctx context.Context, snap, destRegion string) (string, error) {
	srcCP, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return "", err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, srcCP, snap); err != nil {
		return "", err
	}
	srcHandle, err := srcCP.DescribeSnapshot(ctx, snap)
	if err != nil {
		return "", err
	}

	dstCP, err := e.newControlPlane(destRegion)
	if err != nil {
		return "", err
	}
	dstHandle, err := dstCP.StartSnapshot(ctx, snapshot.StartParams{
		VolumeSizeGiB: srcHandle.VolumeSizeGiB,
		Region:        destRegion,
	})
	if err != nil {
		return "", err
	}

	listRPC, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return "", err
	}
	blocks, err := blockindex.New(listRPC).Enumerate(ctx, snap)
	if err != nil {
		return "", err
	}

	counter := &shardedexec.Counter{}
	degree := e.Cfg.ResolveJobs()
	runErr := shardedexec.Run(ctx, blocks, degree, degree, func(shardIdx int) (shardedexec.Task[snapshot.Block], error) {
		srcRPC, err := e.newRPC(e.Cfg.SourceRegion)
		if err != nil {
			return nil, err
		}
		dstRPC, err := e.newRPC(destRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, b snapshot.Block) error {
			chunk, checksum, err := getVerifiedChunk(ctx, srcRPC, snap, b.Index, b.ReadToken)
			if err != nil {
				return err
			}
			if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
				return nil
			}
			if err := dstRPC.PutBlock(ctx, dstHandle.ID, b.Index, chunk, checksum); err != nil {
				return err
			}
			counter.Inc()
			return nil
		}, nil
	})
	if runErr != nil {
		_ = dstCP.AbandonSnapshot(ctx, dstHandle.ID)
		return "", runErr
	}

	if _, err := dstCP.CompleteSnapshot(ctx, dstHandle.ID, counter.Load()); err != nil {
		return "", err
	}
	return dstHandle.ID, nil
}

// Sync replicates the blocks that changed between snapA and snapB into a
// new snapshot in destRegion, parented on parentInDest. Unlike DeltaDownload, sparse suppression applies normally since
// the destination is a real Block API snapshot, not a local file.
func (e *Engine) Sync(ctx context.Context, snapA, snapB, parentInDest, destRegion string) (string, error) {
	srcCP, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return "", err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, srcCP, snapA, snapB); err != nil {
		return "", err
	}
	srcHandle, err := srcCP.DescribeSnapshot(ctx, snapA)
	if err != nil {
		return "", err
	}

	dstCP, err := e.newControlPlane(destRegion)
	if err != nil {
		return "", err
	}
	dstHandle, err := dstCP.StartSnapshot(ctx, snapshot.StartParams{
		VolumeSizeGiB:  srcHandle.VolumeSizeGiB,
		ParentSnapshot: parentInDest,
		Region:         destRegion,
	})
	if err != nil {
		return "", err
	}

	listRPC, err := e.newRPC(e.Cfg.SourceRegion)
	if err != nil {
		return "", err
	}
	blocks, err := blockindex.New(listRPC).EnumerateDiff(ctx, snapA, snapB)
	if err != nil {
		return "", err
	}

	counter := &shardedexec.Counter{}
	degree := e.Cfg.ResolveJobs()
	runErr := shardedexec.Run(ctx, blocks, degree, degree, func(shardIdx int) (shardedexec.Task[snapshot.Block], error) {
		srcRPC, err := e.newRPC(e.Cfg.SourceRegion)
		if err != nil {
			return nil, err
		}
		dstRPC, err := e.newRPC(destRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, b snapshot.Block) error {
			source := snapB
			if b.FromSnapshotA {
				source = snapA
			}
			chunk, checksum, err := getVerifiedChunk(ctx, srcRPC, source, b.Index, readTokenFor(b))
			if err != nil {
				return err
			}
			if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
				return nil
			}
			if err := dstRPC.PutBlock(ctx, dstHandle.ID, b.Index, chunk, checksum); err != nil {
				return err
			}
			counter.Inc()
			return nil
		}, nil
	})
	if runErr != nil {
		_ = dstCP.AbandonSnapshot(ctx, dstHandle.ID)
		return "", runErr
	}

	if _, err := dstCP.CompleteSnapshot(ctx, dstHandle.ID, counter.Load()); err != nil {
		return "", err
	}
	return dstHandle.ID, nil
}
