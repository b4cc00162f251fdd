package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store holds cached API responses. Implementations must be safe for
// concurrent use. Get never filters by age; freshness is the caller's call.
type Store interface {
	// Get returns the entry for key or ErrCacheMiss.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores entry under key, replacing any previous entry.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Has reports whether an entry exists for key, fresh or not.
	Has(ctx context.Context, key Key) (bool, error)
}

// MemoryStore is an unbounded in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Get retrieves a cache entry by key.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key.String()]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(storeMemory).Inc()
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Set stores a cache entry, overwriting any previous one for the same key.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		CacheErrors.WithLabelValues(storeMemory, "set").Inc()
		return fmt.Errorf("cache entry cannot be nil")
	}

	s.mu.Lock()
	s.entries[key.String()] = *entry
	s.mu.Unlock()

	CacheStoredBytes.WithLabelValues(storeMemory).Add(float64(len(entry.Payload)))
	return nil
}

// Has reports whether key has an entry.
func (s *MemoryStore) Has(_ context.Context, key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key.String()]
	return ok, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
