// Package engine implements TransferEngine: the nine
// operation contracts built atop BlockIndexSource, ShardedExecutor,
// RetryingRpc, ChunkCodec, SegmentCodec, and Preflight.
package engine

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/internal/config"
	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/internal/logger"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockapi"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/preflight"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// ClientFactory builds a fresh Block API client for a region. Every shard
// worker calls this once for each region it talks to.
type ClientFactory interface {
	NewClient(region string) (blockapi.Client, error)
}

// ControlPlaneFactory builds a control-plane client for a region.
type ControlPlaneFactory interface {
	NewControlPlane(region string) (snapshot.ControlPlane, error)
}

// Engine wires the leaf components into the nine transfer operations. It
// holds no mutable state of its own; everything it reads comes from the
// Config record passed to New.
type Engine struct {
	Clients       ClientFactory
	ControlPlanes ControlPlaneFactory
	Cfg           config.Config
}

// New builds an Engine.
func New(clients ClientFactory, controlPlanes ControlPlaneFactory, cfg config.Config) *Engine {
	return &Engine{Clients: clients, ControlPlanes: controlPlanes, Cfg: cfg}
}

func (e *Engine) newRPC(region string) (*blockapi.RetryingRpc, error) {
	client, err := e.Clients.NewClient(region)
	if err != nil {
		return nil, fmt.Errorf("engine: build block API client for %s: %w", region, err)
	}
	return blockapi.New(client, blockapi.LoggerSink{}), nil
}

func (e *Engine) newControlPlane(region string) (snapshot.ControlPlane, error) {
	cp, err := e.ControlPlanes.NewControlPlane(region)
	if err != nil {
		return nil, fmt.Errorf("engine: build control plane for %s: %w", region, err)
	}
	return cp, nil
}

// getVerifiedChunk fetches a block and retries indefinitely until the
// locally recomputed SHA-256 matches the server-reported checksum.
func getVerifiedChunk(ctx context.Context, rpc *blockapi.RetryingRpc, snapshotID string, index uint32, token string) ([]byte, string, error) {
	for {
		chunk, checksum, err := rpc.GetBlock(ctx, snapshotID, index, token)
		if err != nil {
			return nil, "", err
		}
		if chunkcodec.Hash(chunk) == checksum {
			return chunk, checksum, nil
		}
		logger.Warn("checksum mismatch, retrying block", "snapshot", snapshotID, "index", index)
	}
}

// readTokenFor picks the token a differential block should be fetched with:
// the peer (newer-snapshot) token when present, else the fallback token from
// the older snapshot.
func readTokenFor(b snapshot.Block) string {
	if b.PeerReadToken != "" {
		return b.PeerReadToken
	}
	return b.ReadToken
}

// volumeSizeGiBForBytes computes ⌈bytes/2^30⌉.
func volumeSizeGiBForBytes(size int64) uint64 {
	const gib = 1 << 30
	return uint64(math.Ceil(float64(size) / float64(gib)))
}

// chunkCountForBytes computes the number of CHUNK_SIZE chunks needed to
// cover size bytes, including a final partial chunk.
func chunkCountForBytes(size int64) uint32 {
	return uint32((size + chunkcodec.Size - 1) / chunkcodec.Size)
}

// indexRange builds the full [0, n) block index slice used by operations
// that read from a local file rather than a Block API listing.
func indexRange(n uint32) []uint32 {
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return indices
}

// readChunkAt opens path fresh, reads exactly one CHUNK_SIZE-aligned chunk,
// and zero-pads a short trailing read.
func readChunkAt(path string, index uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassLocalIO, fmt.Errorf("engine: open source %s: %w", path, err))
	}
	defer f.Close()

	buf := make([]byte, chunkcodec.Size)
	n, err := f.ReadAt(buf, int64(index)*chunkcodec.Size)
	if err != nil && n == 0 {
		return nil, ferrors.New(ferrors.ClassLocalIO, fmt.Errorf("engine: read chunk %d of %s: %w", index, path, err))
	}
	return chunkcodec.Pad(buf[:n]), nil
}

// writeChunkAt opens path fresh, writes one chunk at its absolute offset,
// and flushes before returning.
func writeChunkAt(path string, index uint32, chunk []byte) error {
	f, err := preflight.OpenSink(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteAt(chunk, int64(index)*chunkcodec.Size); err != nil {
		return ferrors.New(ferrors.ClassLocalIO, fmt.Errorf("engine: write chunk %d to %s: %w", index, path, err))
	}
	if err := f.Sync(); err != nil {
		return ferrors.New(ferrors.ClassLocalIO, fmt.Errorf("engine: flush %s: %w", path, err))
	}
	return nil
}
