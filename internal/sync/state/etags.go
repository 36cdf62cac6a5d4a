// Package state holds the ETag baselines the sync engine compares against.
//
// Baselines live in memory only. A fresh ETags is empty, so every resource
// counts as changed on the first comparison.
package state

import (
	"maps"
	"sync"
)

// ETags maps resource addresses to their last observed cleaned ETag
type ETags struct {
	mu    sync.RWMutex
	etags map[string]string
}

// NewETags creates an empty baseline store
func NewETags() *ETags {
	return &ETags{etags: make(map[string]string)}
}

// Get returns the stored ETag of resource and whether one is stored
func (s *ETags) Get(resource string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	etag, ok := s.etags[resource]
	return etag, ok
}

// Set records etag as the baseline of resource
func (s *ETags) Set(resource, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etags[resource] = etag
}

// Changed reports whether current differs from the stored baseline.
// A resource without a baseline has always changed.
func (s *ETags) Changed(resource, current string) bool {
	stored, ok := s.Get(resource)
	return !ok || stored != current
}

// Len returns the number of stored baselines
func (s *ETags) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.etags)
}

// Snapshot returns a copy of every stored baseline
func (s *ETags) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.etags)
}
