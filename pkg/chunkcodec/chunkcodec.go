// Package chunkcodec implements the fixed-size chunk constant, checksum
// hashing, sparse-block detection, and zstandard compression used on the
// object-store path.
package chunkcodec

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/awslabs/flexible-snapshot-proxy/internal/ferrors"
	"github.com/klauspost/compress/zstd"
)

// Size is the fixed block payload size, 512 KiB.
const Size = 524288

// SparseChecksum is the SHA-256 (standard base64) of an all-zero chunk, the
// sole elision key used by IsSparse.
const SparseChecksum = "B4VNL+8pega6gWheZgwzLeNtXRjVRpJ9MNqtbX/aFUE="

// CompressionLevel is the zstandard level used throughout: level 1.
var CompressionLevel = zstd.EncoderLevelFromZstd(1)

// Pad right-pads a short trailing read to exactly Size bytes with zeroes.
func Pad(chunk []byte) []byte {
	if len(chunk) >= Size {
		return chunk[:Size]
	}
	padded := make([]byte, Size)
	copy(padded, chunk)
	return padded
}

// Hash computes the Checksum of a chunk: standard base64 of SHA-256 over
// exactly Size bytes of payload. Hash never fails.
func Hash(chunk []byte) string {
	sum := sha256.Sum256(chunk)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// URLSafeHash computes the URL-safe base64 SHA-256 of arbitrary bytes, used
// for segment names and segment payload verification.
func URLSafeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.URLEncoding.EncodeToString(sum[:])
}

// IsSparse reports whether cs is the sparse sentinel checksum, compared in
// constant time as the checksum is the sole elision key.
func IsSparse(cs string) bool {
	if len(cs) != len(SparseChecksum) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cs), []byte(SparseChecksum)) == 1
}

// encoder pools keyed by compression level, so concurrent callers at
// different levels don't contend on a single pool.
var (
	encoderPools = make(map[zstd.EncoderLevel]*sync.Pool)
	poolMu       sync.RWMutex

	decoder, decoderErr = zstd.NewReader(nil)
)

func getEncoderPool(level zstd.EncoderLevel) *sync.Pool {
	poolMu.RLock()
	pool, ok := encoderPools[level]
	poolMu.RUnlock()
	if ok {
		return pool
	}

	poolMu.Lock()
	defer poolMu.Unlock()
	if pool, ok = encoderPools[level]; ok {
		return pool
	}

	pool = &sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
			return enc
		},
	}
	encoderPools[level] = pool
	return pool
}

// Compress zstandard-compresses src at CompressionLevel (level 1). Compress
// cannot fail for well-formed input.
func Compress(src []byte) []byte {
	pool := getEncoderPool(CompressionLevel)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	return enc.EncodeAll(src, make([]byte, 0, len(src)))
}

// Decompress reverses Compress. A corrupt or truncated frame surfaces as a
// CorruptSegment-classified error.
func Decompress(src []byte) ([]byte, error) {
	if decoderErr != nil {
		return nil, fmt.Errorf("chunkcodec: zstd reader unavailable: %w", decoderErr)
	}
	out, err := decoder.DecodeAll(src, nil)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassCorruptSegment, fmt.Errorf("chunkcodec: decompress: %w", err))
	}
	return out, nil
}

// EqualPayload is a small helper used by tests to compare decompressed
// segment payloads without importing bytes at the call site.
func EqualPayload(a, b []byte) bool {
	return bytes.Equal(a, b)
}
