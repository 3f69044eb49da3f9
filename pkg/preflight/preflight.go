// Package preflight implements snapshot-completeness checks,
// sink/source openability checks, and the object-store ACL check, all run
// before any shard starts moving bytes.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// CheckSnapshotsReadable requires state=completed and progress=100 for
// every listed snapshot id, fatal before any RPC load.
func CheckSnapshotsReadable(ctx context.Context, cp snapshot.ControlPlane, ids ...string) error {
	for _, id := range ids {
		handle, err := cp.DescribeSnapshot(ctx, id)
		if err != nil {
			return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: describe snapshot %s: %w", id, err))
		}
		if !handle.Readable() {
			return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: snapshot %s not ready (state=%s progress=%d%%): %w", id, handle.State, handle.ProgressPercent, ferrors.ErrSnapshotNotReady))
		}
	}
	return nil
}

// OpenSink validates that path can be opened for writing and seeking
// before launching shards. The file is created if it does
// not exist; on platforms where creating a raw device node is not
// permitted, the caller should pre-create the device and this still
// succeeds via O_WRONLY without O_CREATE racing a pre-existing node.
func OpenSink(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		// Retry without O_CREATE: some platforms reject creating new raw
		// device nodes via open(2) but allow opening an existing one.
		f, err = os.OpenFile(path, os.O_WRONLY, 0o644)
		if err != nil {
			return nil, ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: open sink %s: %w: %w", path, ferrors.ErrSinkNotWritable, err))
		}
	}
	if _, err := f.Seek(0, io.SeekCurrent); err != nil {
		f.Close()
		return nil, ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: sink %s not seekable: %w", path, err))
	}
	return f, nil
}

// OpenSource validates that path can be opened for reading and seeking.
func OpenSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: open source %s: %w: %w", path, ferrors.ErrSourceNotReadable, err))
	}
	if _, err := f.Seek(0, io.SeekCurrent); err != nil {
		f.Close()
		return nil, ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: source %s not seekable: %w", path, err))
	}
	return f, nil
}

// CheckRegionsValid requires that every region in regions is enabled for the
// caller, as reported by the control plane's region catalog. Duplicate
// regions are checked once each; an empty regions list is a no-op.
func CheckRegionsValid(ctx context.Context, cp snapshot.ControlPlane, regions ...string) error {
	enabled, err := cp.DescribeRegions(ctx)
	if err != nil {
		return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: describe regions: %w", err))
	}
	allowed := make(map[string]bool, len(enabled))
	for _, r := range enabled {
		allowed[r] = true
	}
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		if seen[r] {
			continue
		}
		seen[r] = true
		if !allowed[r] {
			return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: region %s: %w", r, ferrors.ErrRegionNotFound))
		}
	}
	return nil
}

// CheckBucketACL requires the caller hold at least `required` on the
// object store's configured bucket. If the backend exposes no ACL
// metadata, the check is skipped silently.
func CheckBucketACL(ctx context.Context, store objectstore.Store, required objectstore.Permission) error {
	granted, supported, err := store.CheckACL(ctx, required)
	if err != nil {
		return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: bucket ACL check: %w", err))
	}
	if !supported {
		return nil
	}
	if !granted {
		return ferrors.New(ferrors.ClassPreflight, fmt.Errorf("preflight: bucket lacks required permission %d: %w", required, ferrors.ErrBucketPermission))
	}
	return nil
}
