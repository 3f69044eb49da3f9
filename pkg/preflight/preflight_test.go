package preflight

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore/memstore"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

type fakeControlPlane struct {
	handles        map[string]snapshot.Handle
	enabledRegions []string
}

func (f *fakeControlPlane) DescribeSnapshot(ctx context.Context, id string) (snapshot.Handle, error) {
	return f.handles[id], nil
}
func (f *fakeControlPlane) DescribeRegions(ctx context.Context) ([]string, error) {
	return f.enabledRegions, nil
}
func (f *fakeControlPlane) StartSnapshot(ctx context.Context, p snapshot.StartParams) (snapshot.Handle, error) {
	return snapshot.Handle{}, nil
}
func (f *fakeControlPlane) CompleteSnapshot(ctx context.Context, id string, n uint64) (snapshot.Handle, error) {
	return snapshot.Handle{}, nil
}
func (f *fakeControlPlane) AbandonSnapshot(ctx context.Context, id string) error { return nil }

func TestCheckSnapshotsReadableRejectsIncomplete(t *testing.T) {
	cp := &fakeControlPlane{handles: map[string]snapshot.Handle{
		"snap-a": {ID: "snap-a", State: snapshot.StatePending, ProgressPercent: 40},
	}}
	err := CheckSnapshotsReadable(context.Background(), cp, "snap-a")
	require.Error(t, err)
	require.Equal(t, ferrors.ClassPreflight, ferrors.Classify(err))
}

func TestCheckSnapshotsReadableAcceptsCompleted(t *testing.T) {
	cp := &fakeControlPlane{handles: map[string]snapshot.Handle{
		"snap-a": {ID: "snap-a", State: snapshot.StateCompleted, ProgressPercent: 100},
	}}
	err := CheckSnapshotsReadable(context.Background(), cp, "snap-a")
	require.NoError(t, err)
}

func TestOpenSinkCreatesWritableSeekableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.bin")
	f, err := OpenSink(path)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestOpenSourceFailsOnMissingFile(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	require.Equal(t, ferrors.ClassPreflight, ferrors.Classify(err))
}

func TestCheckBucketACLSkipsWhenUnsupported(t *testing.T) {
	store := memstore.New()
	err := CheckBucketACL(context.Background(), store, 1)
	require.NoError(t, err)
}

func TestCheckBucketACLFailsWhenNotGranted(t *testing.T) {
	store := memstore.New()
	store.WithACL()
	err := CheckBucketACL(context.Background(), store, 1)
	require.Error(t, err)
}

func TestCheckBucketACLPassesWhenGranted(t *testing.T) {
	store := memstore.New()
	store.WithACL(1)
	err := CheckBucketACL(context.Background(), store, 1)
	require.NoError(t, err)
}

func TestCheckRegionsValidAcceptsEnabledRegions(t *testing.T) {
	cp := &fakeControlPlane{enabledRegions: []string{"us-east-1", "us-west-2"}}
	err := CheckRegionsValid(context.Background(), cp, "us-east-1", "us-west-2")
	require.NoError(t, err)
}

func TestCheckRegionsValidRejectsDisabledRegion(t *testing.T) {
	cp := &fakeControlPlane{enabledRegions: []string{"us-east-1"}}
	err := CheckRegionsValid(context.Background(), cp, "us-east-1", "eu-west-1")
	require.Error(t, err)
	require.Equal(t, ferrors.ClassPreflight, ferrors.Classify(err))
	require.ErrorIs(t, err, ferrors.ErrRegionNotFound)
}
