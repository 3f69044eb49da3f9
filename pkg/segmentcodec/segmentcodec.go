// Package segmentcodec implements SegmentCodec: packing runs
// of contiguous, offset-aligned blocks into compressed object-store
// objects, and back, using a key-prefix naming convention that encodes
// the segment's snapshot, offset, payload hash, and block count.
package segmentcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/chunkcodec"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
)

// BlocksPerSegment caps a segment at 64 contiguous blocks (32 MiB of
// uncompressed payload), aligned to 64-block multiples of the snapshot
// address space.
const BlocksPerSegment = 64

// UploadConcurrency is the fixed outer degree used for segment uploads.
const UploadConcurrency = 128

// Segment is a maximal run of contiguous blocks packed under the
// greedy-packing rule.
type Segment struct {
	FirstIndex uint32
	Blocks     []snapshot.Block
}

// Pack greedily partitions an in-order block list into segments. A block b
// extends the current segment iff b.Index == prev.Index+1 AND b.Index mod
// BlocksPerSegment != 0; otherwise b starts a new segment.
// Packing is deterministic and idempotent: re-packing the same list yields
// identical segments.
func Pack(blocks []snapshot.Block) []Segment {
	if len(blocks) == 0 {
		return nil
	}

	var segments []Segment
	current := Segment{FirstIndex: blocks[0].Index, Blocks: []snapshot.Block{blocks[0]}}

	for i := 1; i < len(blocks); i++ {
		b := blocks[i]
		prev := current.Blocks[len(current.Blocks)-1]
		if b.Index == prev.Index+1 && b.Index%BlocksPerSegment != 0 {
			current.Blocks = append(current.Blocks, b)
			continue
		}
		segments = append(segments, current)
		current = Segment{FirstIndex: b.Index, Blocks: []snapshot.Block{b}}
	}
	segments = append(segments, current)
	return segments
}

// Key formats the segment object-store key grammar:
// "<snap>.<vol_gib>/<first_index>.<urlsafe_b64(sha256(payload))>.<block_count>.zstd"
func Key(snapshotID string, volumeSizeGiB uint64, firstIndex uint32, payloadHash string, blockCount int) string {
	return fmt.Sprintf("%s.%d/%d.%s.%d.zstd", snapshotID, volumeSizeGiB, firstIndex, payloadHash, blockCount)
}

// ParsedKey is the result of decomposing a segment key.
type ParsedKey struct {
	SnapshotID    string
	VolumeSizeGiB uint64
	FirstIndex    uint32
	PayloadHash   string
	BlockCount    int
}

// ParseKey recovers the components of a segment key. It returns a
// ValidationError-classified error for any key that does not match the
// grammar.
func ParseKey(key string) (ParsedKey, error) {
	slash := strings.IndexByte(key, '/')
	if slash < 0 {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed key %q: missing '/'", key))
	}
	head, rest := key[:slash], key[slash+1:]

	dot := strings.LastIndexByte(head, '.')
	if dot < 0 {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed key %q: missing vol_gib", key))
	}
	snapID, volStr := head[:dot], head[dot+1:]
	volGiB, err := strconv.ParseUint(volStr, 10, 64)
	if err != nil {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed vol_gib %q: %w", volStr, err))
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 4 || parts[3] != "zstd" {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed key %q: expected first_index.hash.block_count.zstd", key))
	}
	firstIndex, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed first_index %q: %w", parts[0], err))
	}
	blockCount, err := strconv.Atoi(parts[2])
	if err != nil {
		return ParsedKey{}, ferrors.New(ferrors.ClassValidation, fmt.Errorf("segmentcodec: malformed block_count %q: %w", parts[2], err))
	}

	return ParsedKey{
		SnapshotID:    snapID,
		VolumeSizeGiB: volGiB,
		FirstIndex:    uint32(firstIndex),
		PayloadHash:   parts[1],
		BlockCount:    blockCount,
	}, nil
}

// EncodePayload concatenates block payloads in index order, computes the
// URL-safe SHA-256 over the concatenation, and zstandard-compresses it,
// returning the object key and the bytes to upload.
func EncodePayload(snapshotID string, volumeSizeGiB uint64, firstIndex uint32, payloads [][]byte) (key string, compressed []byte) {
	concat := make([]byte, 0, len(payloads)*chunkcodec.Size)
	for _, p := range payloads {
		concat = append(concat, p...)
	}
	hash := chunkcodec.URLSafeHash(concat)
	key = Key(snapshotID, volumeSizeGiB, firstIndex, hash, len(payloads))
	compressed = chunkcodec.Compress(concat)
	return key, compressed
}

// DecodePayload decompresses a segment object and verifies its hash against
// the key's recorded hash. On
// mismatch it returns a CorruptSegment-classified error and the caller
// should skip the segment.
func DecodePayload(parsed ParsedKey, compressed []byte) ([][]byte, error) {
	concat, err := chunkcodec.Decompress(compressed)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassCorruptSegment, fmt.Errorf("segmentcodec: decompress %s: %w", parsed.SnapshotID, err))
	}

	want := parsed.BlockCount * chunkcodec.Size
	if len(concat) != want {
		return nil, ferrors.New(ferrors.ClassCorruptSegment, fmt.Errorf("segmentcodec: decompressed length %d != expected %d", len(concat), want))
	}

	if got := chunkcodec.URLSafeHash(concat); got != parsed.PayloadHash {
		return nil, ferrors.New(ferrors.ClassCorruptSegment, fmt.Errorf("segmentcodec: hash mismatch: got %s want %s", got, parsed.PayloadHash))
	}

	chunks := make([][]byte, parsed.BlockCount)
	for i := 0; i < parsed.BlockCount; i++ {
		chunks[i] = concat[i*chunkcodec.Size : (i+1)*chunkcodec.Size]
	}
	return chunks, nil
}
