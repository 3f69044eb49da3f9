package engine

import (
	"context"
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/shardedexec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// Upload reads path, starts a new destination snapshot (optionally a child
// of parent), writes every non-sparse block, and completes it.
func (e *Engine) Upload(ctx context.Context, path, parent string) (string, error) {
	if src, err := preflight.OpenSource(path); err != nil {
		return "", err
	} else {
		src.Close()
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	volumeSizeGiB := volumeSizeGiBForBytes(info.Size())
	chunkCount := chunkCountForBytes(info.Size())

	cp, err := e.newControlPlane(e.Cfg.DestRegion)
	if err != nil {
		return "", err
	}
	handle, err := cp.StartSnapshot(ctx, snapshot.StartParams{
		VolumeSizeGiB:  volumeSizeGiB,
		ParentSnapshot: parent,
		Region:         e.Cfg.DestRegion,
	})
	if err != nil {
		return "", err
	}

	counter := &shardedexec.Counter{}
	degree := e.Cfg.ResolveJobs()
	runErr := shardedexec.Run(ctx, indexRange(chunkCount), degree, degree, func(shardIdx int) (shardedexec.Task[uint32], error) {
		rpc, err := e.newRPC(e.Cfg.DestRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, index uint32) error {
			chunk, err := readChunkAt(path, index)
			if err != nil {
				return err
			}
			checksum := chunkcodec.Hash(chunk)
			if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
				return nil
			}
			if err := rpc.PutBlock(ctx, handle.ID, index, chunk, checksum); err != nil {
				return err
			}
			counter.Inc()
			return nil
		}, nil
	})
	if runErr != nil {
		_ = cp.AbandonSnapshot(ctx, handle.ID)
		return "", runErr
	}

	if _, err := cp.CompleteSnapshot(ctx, handle.ID, counter.Load()); err != nil {
		return "", err
	}
	return handle.ID, nil
}
