// Package blockapi defines the Block API client surface and the
// RetryingRpc wrapper around it.
package blockapi

import (
	"context"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// Client is the raw, unwrapped Block API transport. Implementations talk to
// the real service (or, in tests, an in-memory fake); RetryingRpc is the
// only consumer every operation in pkg/engine should use directly.
type Client interface {
	// GetBlock fetches one block's payload and the server-computed checksum.
	GetBlock(ctx context.Context, snapshotID string, index uint32, readToken string) (chunk []byte, checksum string, err error)

	// PutBlock writes one block's payload, advertising "SHA256" as the hash
	// algorithm.
	PutBlock(ctx context.Context, snapshotID string, index uint32, chunk []byte, checksum string) (ack bool, err error)

	// ListBlocks returns one page of a full-snapshot block listing.
	ListBlocks(ctx context.Context, snapshotID string, cursor string) (snapshot.Page, error)

	// ListChangedBlocks returns one page of a differential listing between
	// two snapshots.
	ListChangedBlocks(ctx context.Context, snapshotIDA, snapshotIDB string, cursor string) (snapshot.Page, error)
}
