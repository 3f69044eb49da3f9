package engine

import (
	"context"
	"fmt"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/logger"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockindex"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/segmentcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/shardedexec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// MoveToS3 archives every block of snap into the object store as a run of
// 64-block-aligned, zstandard-compressed segments. It returns the "<snap>.<vol_gib>" key prefix the
// segments were written under.
func (e *Engine) MoveToS3(ctx context.Context, snap string, store objectstore.Store) (string, error) {
	cp, err := e.newControlPlane(e.Cfg.SourceRegion)
	if err != nil {
		return "", err
	}
	if err := preflight.CheckSnapshotsReadable(ctx, cp, snap); err != nil {
		return "", err
	}
	if err := preflight.CheckBucketACL(ctx, store, objectstore.PermissionWrite); err != nil {
		return "", err
	}

	handle, err := cp.DescribeSnapshot(ctx, snap)
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
	segments := segmentcodec.Pack(blocks)

	err = shardedexec.Run(ctx, segments, segmentcodec.UploadConcurrency, 1, func(shardIdx int) (shardedexec.Task[segmentcodec.Segment], error) {
		rpc, err := e.newRPC(e.Cfg.SourceRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, seg segmentcodec.Segment) error {
			payloads := make([][]byte, len(seg.Blocks))
			for i, b := range seg.Blocks {
				chunk, _, err := getVerifiedChunk(ctx, rpc, snap, b.Index, b.ReadToken)
				if err != nil {
					return err
				}
				payloads[i] = chunk
			}
			key, compressed := segmentcodec.EncodePayload(snap, handle.VolumeSizeGiB, seg.FirstIndex, payloads)
			return store.Put(ctx, key, compressed)
		}, nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%d", snap, handle.VolumeSizeGiB), nil
}

// GetFromS3 reverses MoveToS3: it lists every object under prefix,
// decompresses and verifies each segment, and replays the blocks into a
// new snapshot in destRegion. A segment that
// fails hash verification is skipped and logged rather than aborting the
// whole restore.
func (e *Engine) GetFromS3(ctx context.Context, prefix, destRegion string, store objectstore.Store) (string, error) {
	if err := preflight.CheckBucketACL(ctx, store, objectstore.PermissionRead); err != nil {
		return "", err
	}

	keys, err := store.ListByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", ferrors.New(ferrors.ClassValidation, fmt.Errorf("engine: no objects found under prefix %q", prefix))
	}

	parsedKeys := make([]segmentcodec.ParsedKey, len(keys))
	var volumeSizeGiB uint64
	for i, key := range keys {
		parsed, err := segmentcodec.ParseKey(key)
		if err != nil {
			return "", err
		}
		if i == 0 {
			volumeSizeGiB = parsed.VolumeSizeGiB
		} else if parsed.VolumeSizeGiB != volumeSizeGiB {
			return "", ferrors.New(ferrors.ClassValidation, fmt.Errorf("engine: key %q: %w", key, ferrors.ErrHeterogeneousVolGB))
		}
		parsedKeys[i] = parsed
	}

	cp, err := e.newControlPlane(destRegion)
	if err != nil {
		return "", err
	}
	handle, err := cp.StartSnapshot(ctx, snapshot.StartParams{VolumeSizeGiB: volumeSizeGiB, Region: destRegion})
	if err != nil {
		return "", err
	}

	type keyedObject struct {
		key    string
		parsed segmentcodec.ParsedKey
	}
	objs := make([]keyedObject, len(keys))
	for i := range keys {
		objs[i] = keyedObject{key: keys[i], parsed: parsedKeys[i]}
	}

	counter := &shardedexec.Counter{}
	runErr := shardedexec.Run(ctx, objs, segmentcodec.UploadConcurrency, 1, func(shardIdx int) (shardedexec.Task[keyedObject], error) {
		rpc, err := e.newRPC(destRegion)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, obj keyedObject) error {
			compressed, err := store.Get(ctx, obj.key)
			if err != nil {
				return err
			}
			chunks, err := segmentcodec.DecodePayload(obj.parsed, compressed)
			if err != nil {
				if ferrors.Classify(err) == ferrors.ClassCorruptSegment {
					logger.Warn("skipping corrupt segment", "key", obj.key)
					return nil
				}
				return err
			}

			for i, chunk := range chunks {
				index := obj.parsed.FirstIndex + uint32(i)
				checksum := chunkcodec.Hash(chunk)
				if chunkcodec.IsSparse(checksum) && !e.Cfg.FullCopy {
					continue
				}
				if err := rpc.PutBlock(ctx, handle.ID, index, chunk, checksum); err != nil {
					return err
				}
				counter.Inc()
			}
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
