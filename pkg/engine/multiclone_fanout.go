package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockindex"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/shardedexec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// MultiClone writes every block of snap to every path in paths: one Block API read per block, fanned out to N local
// writers.
func (e *Engine) MultiClone(ctx context.Context, snap string, paths []string) error {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snap); err != nil {
		return err
	}
	for _, path := range paths {
		sink, err := preflight.OpenSink(path)
		if err != nil {
			return err
		}
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
	return shardedexec.Run(ctx, blocks, degree, degree, func(shardIdx int) (shardedexec.Task[snapshot.Block], error) {
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
			for _, path := range paths {
				if err := writeChunkAt(path, b.Index, chunk); err != nil {
					return err
				}
			}
			return nil
		}, nil
	})
}

// fanoutDest tracks one destination snapshot's region, handle, and counter
// for the duration of a Fanout call.
type fanoutDest struct {
	region  string
	cp      snapshot.ControlPlane
	handle  snapshot.Handle
	rpc     *fanoutRPCSet
	counter shardedexec.Counter
}

// fanoutRPCSet lazily builds one RetryingRpc per shard for a destination,
// mirroring the "one client handle per shard" rule without tying it to
// shardedexec.Run's single-item-type signature.
type fanoutRPCSet struct {
	mu      sync.Mutex
	engine  *Engine
	region  string
	byShard map[int]PutBlock
}

// PutBlock is the minimal surface fanoutRPCSet needs from a RetryingRpc.
type PutBlock interface {
	PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) error
}

func newFanoutRPCSet(e *Engine, region string) *fanoutRPCSet {
	return &fanoutRPCSet{engine: e, region: region, byShard: make(map[int]PutBlock)}
}

func (s *fanoutRPCSet) forShard(shardIdx int) (PutBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rpc, ok := s.byShard[shardIdx]; ok {
		return rpc, nil
	}
	rpc, err := s.engine.newRPC(s.region)
	if err != nil {
		return nil, err
	}
	s.byShard[shardIdx] = rpc
	return rpc, nil
}

// Fanout reads localPath once per block and writes it into a freshly
// started snapshot in each of regions, completing every destination
// snapshot with its own changed_blocks_count.
func (e *Engine) Fanout(ctx context.Context, localPath string, regions []string) (map[string]string, error) {
	if src, err := preflight.OpenSource(localPath); err != nil {
		return nil, err
	} else {
		src.Close()
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassLocalIO, fmt.Errorf("engine: stat %s: %w", localPath, err))
	}
	volumeSizeGiB := volumeSizeGiBForBytes(info.Size())
	chunkCount := chunkCountForBytes(info.Size())

	dests := make([]*fanoutDest, len(regions))
	for i, region := range regions {
		cp, err := e.newControlPlane(region)
		if err != nil {
			return nil, err
		}
		handle, err := cp.StartSnapshot(ctx, snapshot.StartParams{VolumeSizeGiB: volumeSizeGiB, Region: region})
		if err != nil {
			return nil, err
		}
		dests[i] = &fanoutDest{region: region, cp: cp, handle: handle, rpc: newFanoutRPCSet(e, region)}
	}

	degree := e.Cfg.ResolveJobs()
	runErr := shardedexec.Run(ctx, indexRange(chunkCount), degree, degree, func(shardIdx int) (shardedexec.Task[uint32], error) {
		destRPCs := make([]PutBlock, len(dests))
		for i, d := range dests {
			rpc, err := d.rpc.forShard(shardIdx)
			if err != nil {
				return nil, err
			}
			destRPCs[i] = rpc
		}

		return func(ctx context.Context, index uint32) error {
			chunk, err := readChunkAt(localPath, index)
			if err != nil {
				return err
			}
			checksum := chunkcodec.Hash(chunk)
			if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
				return nil
			}

			var wg sync.WaitGroup
			errs := make([]error, len(dests))
			for i := range dests {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := destRPCs[i].PutBlock(ctx, dests[i].handle.ID, index, chunk, checksum); err != nil {
						errs[i] = err
						return
					}
					dests[i].counter.Inc()
				}()
			}
			wg.Wait()
			for _, err := range errs {
				if err != nil {
					return err
				}
			}
			return nil
		}, nil
	})

	results := make(map[string]string, len(dests))
	if runErr != nil {
		for _, d := range dests {
			_ = d.cp.AbandonSnapshot(ctx, d.handle.ID)
		}
		return nil, runErr
	}

	for _, d := range dests {
		if _, err := d.cp.CompleteSnapshot(ctx, d.handle.ID, d.counter.Load()); err != nil {
			return nil, err
		}
		results[d.region] = d.handle.ID
	}
	return results, nil
}
