// Package snapshot defines the core data-model entities shared by the
// transfer engine: Block, Snapshot handles, and the control-plane
// operations (describe-snapshot, describe-regions, start-snapshot,
// complete-snapshot) used to manage a destination snapshot's lifecycle.
package snapshot

import "context"

// Block is a single addressable unit of a snapshot.
type Block struct {
	// Index is in units of chunkcodec.Size bytes.
	Index uint32

	// ReadToken is opaque; passed back to the Block API to fetch payload.
	ReadToken string

	// PeerReadToken is set only for blocks yielded by a differential listing
	// when the changed block also exists in the newer snapshot.
	PeerReadToken string

	// FromSnapshotA records that, for a differential listing, this block's
	// PeerReadToken was absent and ReadToken (snapshot A's token) was used
	// instead.
	FromSnapshotA bool
}

// State is the lifecycle state of a Snapshot handle.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Handle describes a snapshot as reported by the control plane.
type Handle struct {
	ID              string
	VolumeSizeGiB   uint64
	State           State
	ProgressPercent int
}

// Readable reports whether the snapshot may be read from.
func (h Handle) Readable() bool {
	return h.State == StateCompleted && h.ProgressPercent == 100
}

// Page is one page of a paginated block listing.
type Page struct {
	Blocks []Block
	Cursor string // empty means no further pages
}

// StartParams are the parameters for starting a new destination snapshot.
type StartParams struct {
	VolumeSizeGiB  uint64
	ParentSnapshot string // optional
	Region         string
}

// ControlPlane is the non-transfer surface of the Block API: snapshot
// lifecycle and region metadata.
type ControlPlane interface {
	// DescribeSnapshot returns the current Handle for a snapshot.
	DescribeSnapshot(ctx context.Context, id string) (Handle, error)

	// DescribeRegions returns every region name the Block API recognizes,
	// used by the CLI layer to validate -o/-d flags.
	DescribeRegions(ctx context.Context) ([]string, error)

	// StartSnapshot begins a new destination snapshot, writable until
	// CompleteSnapshot. Returns ValidationError (classified, see
	// internal/ferrors) immediately on bad parent-id/volume-size.
	StartSnapshot(ctx context.Context, params StartParams) (Handle, error)

	// CompleteSnapshot finalizes a destination snapshot with the final
	// counter value as changed_blocks_count.
	CompleteSnapshot(ctx context.Context, id string, changedBlocksCount uint64) (Handle, error)

	// AbandonSnapshot releases a destination snapshot that failed before
	// completion.
	AbandonSnapshot(ctx context.Context, id string) error
}

// Identity is the caller identity resolved via STS at startup, carried in
// config.Config as AccountID/UserID/CanonicalUserID.
type Identity struct {
	AccountID       string
	UserID          string
	CanonicalUserID string
}
