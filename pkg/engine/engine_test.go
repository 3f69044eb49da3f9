package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/awslabs/flexible-snapshot-proxy/internal/config"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/blockapi"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore/memstore"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory blockapi.Client keyed by snapshot ID. Both
// reads and writes land in the same map so upload/copy/sync tests can
// inspect what was put.
type fakeClient struct {
	mu   sync.Mutex
	data map[string]map[uint32][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string]map[uint32][]byte)}
}

func (f *fakeClient) seed(snap string, blocks map[uint32][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[snap] = blocks
}

func (f *fakeClient) snapshot(snap string) map[uint32][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint32][]byte, len(f.data[snap]))
	for k, v := range f.data[snap] {
		out[k] = v
	}
	return out
}

func (f *fakeClient) GetBlock(ctx context.Context, snap string, index uint32, token string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk := f.data[snap][index]
	return chunk, chunkcodec.Hash(chunk), nil
}

func (f *fakeClient) PutBlock(ctx context.Context, snap string, index uint32, chunk []byte, checksum string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[snap] == nil {
		f.data[snap] = make(map[uint32][]byte)
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	f.data[snap][index] = cp
	return true, nil
}

func (f *fakeClient) ListBlocks(ctx context.Context, snap, cursor string) (snapshot.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blocks := make([]snapshot.Block, 0, len(f.data[snap]))
	for idx := range f.data[snap] {
		blocks = append(blocks, snapshot.Block{Index: idx, ReadToken: "tok"})
	}
	// The Block API lists blocks in index order; map iteration does not.
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })
	return snapshot.Page{Blocks: blocks}, nil
}

func (f *fakeClient) ListChangedBlocks(ctx context.Context, a, b, cursor string) (snapshot.Page, error) {
	return snapshot.Page{}, nil
}

// fakeControlPlane is an in-memory snapshot.ControlPlane.
type fakeControlPlane struct {
	mu              sync.Mutex
	handles         map[string]snapshot.Handle
	nextID          int
	completedCounts map[string]uint64
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{handles: make(map[string]snapshot.Handle), completedCounts: make(map[string]uint64)}
}

// completedCount returns the changed_blocks_count CompleteSnapshot recorded
// for id.
func (c *fakeControlPlane) completedCount(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completedCounts[id]
}

func (c *fakeControlPlane) seedCompleted(id string, volumeSizeGiB uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[id] = snapshot.Handle{ID: id, VolumeSizeGiB: volumeSizeGiB, State: snapshot.StateCompleted, ProgressPercent: 100}
}

func (c *fakeControlPlane) DescribeSnapshot(ctx context.Context, id string) (snapshot.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[id], nil
}

func (c *fakeControlPlane) DescribeRegions(ctx context.Context) ([]string, error) { return nil, nil }

func (c *fakeControlPlane) StartSnapshot(ctx context.Context, p snapshot.StartParams) (snapshot.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := "dst-" + string(rune('a'+c.nextID))
	h := snapshot.Handle{ID: id, VolumeSizeGiB: p.VolumeSizeGiB, State: snapshot.StatePending}
	c.handles[id] = h
	return h, nil
}

func (c *fakeControlPlane) CompleteSnapshot(ctx context.Context, id string, n uint64) (snapshot.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.handles[id]
	h.State = snapshot.StateCompleted
	h.ProgressPercent = 100
	c.handles[id] = h
	c.completedCounts[id] = n
	return h, nil
}

func (c *fakeControlPlane) AbandonSnapshot(ctx context.Context, id string) error { return nil }

type fixedClients struct{ client *fakeClient }

func (f fixedClients) NewClient(region string) (blockapi.Client, error) {
	return f.client, nil
}

type fixedControlPlanes struct{ cp *fakeControlPlane }

func (f fixedControlPlanes) NewControlPlane(region string) (snapshot.ControlPlane, error) {
	return f.cp, nil
}

func chunkOf(b byte) []byte {
	c := make([]byte, chunkcodec.Size)
	c[0] = b
	return c
}

func TestListReportsBlockCountAndBytes(t *testing.T) {
	client := newFakeClient()
	client.seed("snap-a", map[uint32][]byte{0: chunkOf(1), 1: chunkOf(2), 2: chunkOf(3)})
	cp := newFakeControlPlane()
	cp.seedCompleted("snap-a", 1)

	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1"})
	summary, err := e.List(context.Background(), "snap-a")
	require.NoError(t, err)
	require.Equal(t, uint64(3), summary.BlockCount)
	require.Equal(t, uint64(3*chunkcodec.Size), summary.TotalBytes)
}

func TestDownloadWritesNonSparseBlocksOnly(t *testing.T) {
	client := newFakeClient()
	sparse := make([]byte, chunkcodec.Size)
	client.seed("snap-a", map[uint32][]byte{0: chunkOf(9), 1: sparse})
	cp := newFakeControlPlane()
	cp.seedCompleted("snap-a", 1)

	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1", Jobs: 2})
	path := filepath.Join(t.TempDir(), "out.img")
	err := e.Download(context.Background(), "snap-a", path)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2*chunkcodec.Size)
	require.Equal(t, chunkOf(9), got[:chunkcodec.Size])
	require.Equal(t, make([]byte, chunkcodec.Size), got[chunkcodec.Size:])
}

func TestUploadSkipsSparseAndSetsChangedBlockCount(t *testing.T) {
	client := newFakeClient()
	cp := newFakeControlPlane()

	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1", DestRegion: "us-east-1", Jobs: 2})

	path := filepath.Join(t.TempDir(), "src.img")
	data := append(chunkOf(5), make([]byte, chunkcodec.Size)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	id, err := e.Upload(context.Background(), path, "")
	require.NoError(t, err)

	written := client.snapshot(id)
	require.Len(t, written, 1)
	require.Equal(t, chunkOf(5), written[0])

	handle, err := cp.DescribeSnapshot(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, snapshot.StateCompleted, handle.State)
	require.Equal(t, uint64(1), cp.completedCount(id))
}

func TestMoveToS3ThenGetFromS3RoundTrips(t *testing.T) {
	client := newFakeClient()
	blocks := map[uint32][]byte{}
	for i := uint32(0); i < 3; i++ {
		blocks[i] = chunkOf(byte(i + 1))
	}
	client.seed("snap-a", blocks)
	cp := newFakeControlPlane()
	cp.seedCompleted("snap-a", 1)

	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1", DestRegion: "us-east-1"})
	store := memstore.New()

	prefix, err := e.MoveToS3(context.Background(), "snap-a", store)
	require.NoError(t, err)
	require.Equal(t, "snap-a.1", prefix)

	keys, err := store.ListByPrefix(context.Background(), prefix)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	id, err := e.GetFromS3(context.Background(), prefix, "us-east-1", store)
	require.NoError(t, err)

	restored := client.snapshot(id)
	require.Len(t, restored, 3)
	for i := uint32(0); i < 3; i++ {
		require.Equal(t, chunkOf(byte(i+1)), restored[i])
	}
}

func TestGetFromS3RejectsHeterogeneousVolumeSizes(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Put(context.Background(), "snap-a.1/0.hash.1.zstd", []byte("x")))
	require.NoError(t, store.Put(context.Background(), "snap-a.2/64.hash.1.zstd", []byte("y")))

	client := newFakeClient()
	cp := newFakeControlPlane()
	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1", DestRegion: "us-east-1"})

	_, err := e.GetFromS3(context.Background(), "snap-a", "us-east-1", store)
	require.Error(t, err)
}

func TestFanoutSetsPerRegionChangedBlockCountToNonSparseChunks(t *testing.T) {
	client := newFakeClient()
	cp := newFakeControlPlane()

	e := New(fixedClients{client}, fixedControlPlanes{cp}, config.Config{SourceRegion: "us-east-1", Jobs: 2})

	path := filepath.Join(t.TempDir(), "src.img")
	sparse := make([]byte, chunkcodec.Size)
	data := append(append(chunkOf(1), sparse...), chunkOf(2)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	const nonSparseChunks = 2

	regions := []string{"us-east-1", "us-west-2", "eu-west-1"}
	results, err := e.Fanout(context.Background(), path, regions)
	require.NoError(t, err)
	require.Len(t, results, len(regions))

	for _, region := range regions {
		id, ok := results[region]
		require.True(t, ok, "missing result for region %s", region)
		require.Equal(t, uint64(nonSparseChunks), cp.completedCount(id))

		written := client.snapshot(id)
		require.Len(t, written, nonSparseChunks)
	}
}

var _ objectstore.Store = memstore.New()
