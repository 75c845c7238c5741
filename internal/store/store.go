// Package store holds reviewed-repository snapshots for the process
// lifetime. Entries are never evicted: downstream tools assume a key
// persists once written.
package store

import (
	"sync"
	"time"

	"github.com/go-faster/jx"

	"codescope/server/pkg/githubapi"
)

// Snapshot is the full fetched-and-filtered state for one repository,
// keyed by "owner/name".
type Snapshot struct {
	RepoKey     string
	RepoInfo    jx.Raw // origin metadata, passed through unmodified
	Files       map[string]githubapi.File
	CodeContent map[string]githubapi.File
	FocusAreas  string
	ReviewedAt  time.Time
	Review      map[string]any
}

// Store is a guarded mapping from repo key to snapshot. Put replaces the
// whole value bound to a key (last writer wins); there is no partial merge.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
	order []string
}

func New() *Store {
	return &Store{snaps: make(map[string]*Snapshot)}
}

// Put binds key to snap, overwriting any previous snapshot wholesale.
func (s *Store) Put(key string, snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snaps[key]; !exists {
		s.order = append(s.order, key)
	}
	s.snaps[key] = snap
}

// Get returns the snapshot bound to key, if any.
func (s *Store) Get(key string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[key]
	return snap, ok
}

// Keys returns all bound keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len reports the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}
