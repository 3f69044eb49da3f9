package chunkcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSparseChecksumIsAllZeroHash(t *testing.T) {
	zero := make([]byte, Size)
	require.Equal(t, SparseChecksum, Hash(zero))
	require.True(t, IsSparse(Hash(zero)))
}

func TestIsSparseRejectsDifferentChecksum(t *testing.T) {
	data := make([]byte, Size)
	data[0] = 1
	require.False(t, IsSparse(Hash(data)))
}

func TestPadRightPadsShortReads(t *testing.T) {
	short := []byte{1, 2, 3}
	padded := Pad(short)
	require.Len(t, padded, Size)
	require.Equal(t, byte(1), padded[0])
	require.Equal(t, byte(0), padded[Size-1])
}

func TestPadTruncatesOverlongInput(t *testing.T) {
	over := make([]byte, Size+10)
	padded := Pad(over)
	require.Len(t, padded, Size)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	data := make([]byte, Size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	compressed := Compress(data)
	require.NotEmpty(t, compressed)

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	require.True(t, EqualPayload(data, decompressed))
}

func TestDecompressCorruptData(t *testing.T) {
	_, err := Decompress([]byte("not zstd data at all"))
	require.Error(t, err)
}

func TestURLSafeHashIsDeterministic(t *testing.T) {
	data := []byte("segment payload")
	require.Equal(t, URLSafeHash(data), URLSafeHash(data))
	require.NotEqual(t, URLSafeHash(data), Hash(data))
}
