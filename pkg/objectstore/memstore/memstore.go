// Package memstore is an in-memory objectstore.Store for tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
)

// Store is an in-memory implementation of objectstore.Store.
type Store struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	aclGrants   map[objectstore.Permission]bool
	aclSupport  bool
}

// New creates an empty in-memory store. By default ACL checks are
// unsupported (skip silently), matching backends with no ACL metadata.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// WithACL configures the store to report ACL support, granting exactly the
// permissions passed.
func (s *Store) WithACL(granted ...objectstore.Permission) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aclSupport = true
	s.aclGrants = make(map[objectstore.Permission]bool, len(granted))
	for _, p := range granted {
		s.aclGrants[p] = true
	}
	return s
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) CheckACL(ctx context.Context, required objectstore.Permission) (granted bool, supported bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.aclSupport {
		return false, false, nil
	}
	if required == objectstore.PermissionFullControl {
		return s.aclGrants[objectstore.PermissionFullControl], true, nil
	}
	return s.aclGrants[required] || s.aclGrants[objectstore.PermissionFullControl], true, nil
}

var _ objectstore.Store = (*Store)(nil)
