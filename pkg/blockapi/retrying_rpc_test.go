package blockapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Emit(blockRef, operation, errorKind string, retry int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, fmt.Sprintf("%s %s %s retry=%d", blockRef, operation, errorKind, retry))
}

// fakeClient fails the first failCount calls per block with a classified
// error, then succeeds.
type fakeClient struct {
	failCount int
	calls     map[uint32]int
	mu        sync.Mutex
	class     ferrors.Class
}

func (f *fakeClient) GetBlock(ctx context.Context, snapshotID string, index uint32, readToken string) ([]byte, string, error) {
	f.mu.Lock()
	f.calls[index]++
	n := f.calls[index]
	f.mu.Unlock()

	if n <= f.failCount {
		return nil, "", ferrors.New(f.class, errors.New("throttled")).WithQuota("acct-quota-1")
	}
	return []byte("payload"), "checksum", nil
}

func (f *fakeClient) PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) (bool, error) {
	return true, nil
}

func (f *fakeClient) ListBlocks(ctx context.Context, snapshotID string, cursor string) (snapshot.Page, error) {
	return snapshot.Page{}, nil
}

func (f *fakeClient) ListChangedBlocks(ctx context.Context, a, b, cursor string) (snapshot.Page, error) {
	return snapshot.Page{}, nil
}

func TestRetryingRpcRetriesThrottleIndefinitely(t *testing.T) {
	client := &fakeClient{failCount: 2, calls: map[uint32]int{}, class: ferrors.ClassAccountThrottle}
	sink := &recordingSink{}
	rpc := New(client, sink)

	chunk, checksum, err := rpc.GetBlock(context.Background(), "snap-1", 0, "tok")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), chunk)
	require.Equal(t, "checksum", checksum)

	// Two failures then success yields exactly one diagnostic line: the
	// first failed attempt stays silent, the second is logged.
	require.Len(t, sink.lines, 1)
	require.Contains(t, sink.lines[0], "retry=2")
	require.Contains(t, sink.lines[0], "AccountThrottle")
	require.Contains(t, sink.lines[0], "acct-quota-1")
}

func TestRetryingRpcDoesNotRetryAccessDenied(t *testing.T) {
	client := &fakeClient{failCount: 1000, calls: map[uint32]int{}, class: ferrors.ClassAccessDenied}
	sink := &recordingSink{}
	rpc := New(client, sink)

	_, _, err := rpc.GetBlock(context.Background(), "snap-1", 0, "tok")
	require.Error(t, err)

	var classified *ferrors.Classified
	require.ErrorAs(t, err, &classified)
	require.Equal(t, ferrors.ClassAccessDenied, classified.Class)
	require.Empty(t, sink.lines)
}
