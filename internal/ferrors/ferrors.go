// Package ferrors defines the error taxonomy and exit-code mapping used
// throughout the client, following a sentinel-errors-plus-classifier style.
package ferrors

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Class is one leaf of the error taxonomy.
type Class int

const (
	// ClassUnknown is not part of the taxonomy; Classify returns it only for
	// a nil error, and it is not retryable.
	ClassUnknown Class = iota
	ClassTransientRPC
	ClassAccountThrottle
	ClassSnapshotThrottle
	ClassAccessDenied
	ClassValidation
	ClassChecksumMismatch
	ClassCorruptSegment
	ClassPreflight
	ClassLocalIO
)

func (c Class) String() string {
	switch c {
	case ClassTransientRPC:
		return "TransientRPC"
	case ClassAccountThrottle:
		return "AccountThrottle"
	case ClassSnapshotThrottle:
		return "SnapshotThrottle"
	case ClassAccessDenied:
		return "AccessDenied"
	case ClassValidation:
		return "ValidationError"
	case ClassChecksumMismatch:
		return "ChecksumMismatch"
	case ClassCorruptSegment:
		return "CorruptSegment"
	case ClassPreflight:
		return "PreflightFailure"
	case ClassLocalIO:
		return "LocalIO"
	default:
		return "Unknown"
	}
}

// Retryable reports whether RetryingRpc should retry indefinitely for this
// class.
func (c Class) Retryable() bool {
	switch c {
	case ClassTransientRPC, ClassAccountThrottle, ClassSnapshotThrottle, ClassChecksumMismatch:
		return true
	default:
		return false
	}
}

// ExitCode maps a class to the process exit code reported on the CLI.
func (c Class) ExitCode() int {
	switch c {
	case ClassAccessDenied:
		return 77
	case ClassValidation, ClassPreflight, ClassLocalIO, ClassCorruptSegment:
		return 1
	default:
		return 1
	}
}

// Classified wraps an error with its taxonomy class and, for throttle
// classes, the quota handle named in the diagnostic.
type Classified struct {
	Class      Class
	QuotaHandle string
	Err        error
}

func (c *Classified) Error() string {
	if c.QuotaHandle != "" {
		return c.Class.String() + "(" + c.QuotaHandle + "): " + c.Err.Error()
	}
	return c.Class.String() + ": " + c.Err.Error()
}

func (c *Classified) Unwrap() error { return c.Err }

// New builds a Classified error.
func New(class Class, err error) *Classified {
	return &Classified{Class: class, Err: err}
}

// WithQuota attaches a quota-handle tag (used by account/snapshot throttle).
func (c *Classified) WithQuota(handle string) *Classified {
	c.QuotaHandle = handle
	return c
}

// Sentinel errors for conditions with no dynamic detail.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrSnapshotNotReady   = errors.New("snapshot is not in state completed at 100% progress")
	ErrChecksumMismatch   = errors.New("recomputed checksum does not match server checksum")
	ErrCorruptSegment     = errors.New("segment payload failed hash verification")
	ErrSinkNotWritable    = errors.New("sink cannot be opened for writing/seeking")
	ErrSourceNotReadable  = errors.New("source cannot be opened for reading/seeking")
	ErrBucketPermission   = errors.New("object store bucket lacks required ACL grant")
	ErrHeterogeneousVolGB = errors.New("getfroms3: object keys under prefix disagree on vol_gib")
	ErrRegionNotFound     = errors.New("region is not enabled for this account")
)

// Classify inspects err (possibly wrapped) and assigns it a class: the class
// of an already-Classified error, or the class of one of the sentinels
// above. Anything else is treated as a retryable transient RPC error.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var classified *Classified
	if errors.As(err, &classified) {
		return classified.Class
	}

	switch {
	case errors.Is(err, ErrAccessDenied):
		return ClassAccessDenied
	case errors.Is(err, ErrChecksumMismatch):
		return ClassChecksumMismatch
	case errors.Is(err, ErrCorruptSegment):
		return ClassCorruptSegment
	case errors.Is(err, ErrSnapshotNotReady), errors.Is(err, ErrSinkNotWritable),
		errors.Is(err, ErrSourceNotReadable), errors.Is(err, ErrBucketPermission),
		errors.Is(err, ErrHeterogeneousVolGB), errors.Is(err, ErrRegionNotFound):
		return ClassPreflight
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTransientRPC
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransientRPC
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransientRPC
	}

	return ClassTransientRPC
}
