// Package objectstore defines the archival object-store surface used by the
// segment-encoded archive path and its ACL preflight check.
package objectstore

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a requested key does not exist.
var ErrObjectNotFound = errors.New("objectstore: object not found")

// Permission is one of the grants Preflight checks for before movetos3 /
// getfroms3.
type Permission int

const (
	PermissionRead Permission = iota
	PermissionWrite
	PermissionFullControl
)

// Store is the archival object store surface: put/get/list objects under a
// bucket, plus an ACL check that Preflight calls before any transfer.
type Store interface {
	// Put uploads data under key.
	Put(ctx context.Context, key string, data []byte) error

	// Get downloads the full object at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// ListByPrefix lists every key under prefix, across as many pages as the
	// backend requires.
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)

	// CheckACL reports whether the caller holds at least `required` on the
	// configured bucket. The second return value is false when the backend
	// exposes no ACL metadata at all, in which case Preflight skips the
	// check silently.
	CheckACL(ctx context.Context, required Permission) (granted bool, supported bool, err error)
}
