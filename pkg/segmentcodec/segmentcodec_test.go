package segmentcodec

import (
	"testing"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/snapshot"
	"github.com/stretchr/testify/require"
)

func blocksRange(indices ...uint32) []snapshot.Block {
	blocks := make([]snapshot.Block, len(indices))
	for i, idx := range indices {
		blocks[i] = snapshot.Block{Index: idx}
	}
	return blocks
}

func TestPackSplitsAt64BlockBoundary(t *testing.T) {
	// indices 0..127: should split into exactly two 64-block segments.
	indices := make([]uint32, 128)
	for i := range indices {
		indices[i] = uint32(i)
	}
	segments := Pack(blocksRange(indices...))
	require.Len(t, segments, 2)
	require.Len(t, segments[0].Blocks, 64)
	require.Len(t, segments[1].Blocks, 64)
	require.Equal(t, uint32(0), segments[0].FirstIndex)
	require.Equal(t, uint32(64), segments[1].FirstIndex)
}

func TestPackBreaksOnNonContiguousGap(t *testing.T) {
	segments := Pack(blocksRange(0, 1, 2, 10, 11))
	require.Len(t, segments, 2)
	require.Len(t, segments[0].Blocks, 3)
	require.Len(t, segments[1].Blocks, 2)
	require.Equal(t, uint32(10), segments[1].FirstIndex)
}

func TestPackIsIdempotent(t *testing.T) {
	blocks := blocksRange(0, 1, 2, 3, 64, 65, 200)
	a := Pack(blocks)
	b := Pack(blocks)
	require.Equal(t, a, b)
}

func TestKeyGrammarRoundTrip(t *testing.T) {
	payloads := [][]byte{
		make([]byte, 524288),
		make([]byte, 524288),
	}
	payloads[1][0] = 7

	key, compressed := EncodePayload("snap-abc", 10, 64, payloads)
	require.Contains(t, key, "snap-abc.10/64.")
	require.Contains(t, key, ".2.zstd")

	parsed, err := ParseKey(key)
	require.NoError(t, err)
	require.Equal(t, "snap-abc", parsed.SnapshotID)
	require.Equal(t, uint64(10), parsed.VolumeSizeGiB)
	require.Equal(t, uint32(64), parsed.FirstIndex)
	require.Equal(t, 2, parsed.BlockCount)

	chunks, err := DecodePayload(parsed, compressed)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, payloads[0], chunks[0])
	require.Equal(t, payloads[1], chunks[1])
}

func TestDecodePayloadRejectsTamperedHash(t *testing.T) {
	payloads := [][]byte{make([]byte, 524288)}
	key, compressed := EncodePayload("snap-1", 1, 0, payloads)
	parsed, err := ParseKey(key)
	require.NoError(t, err)

	parsed.PayloadHash = "tampered-hash-value"
	_, err = DecodePayload(parsed, compressed)
	require.Error(t, err)
	require.Equal(t, ferrors.ClassCorruptSegment, ferrors.Classify(err))
}

func TestParseKeyRejectsMalformedKey(t *testing.T) {
	_, err := ParseKey("not-a-valid-key")
	require.Error(t, err)
	require.Equal(t, ferrors.ClassValidation, ferrors.Classify(err))
}
