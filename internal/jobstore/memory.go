package jobstore

import (
	"context"
	"path"
	"sync"
	"time"

	"tabserve/internal/domain"
)

var _ domain.KeyValueStore = (*MemoryStore)(nil)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process KeyValueStore for single-node deployments and
// tests. Expired entries are dropped lazily on access; there is no sweeper.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	counters map[string]int64
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock. Used by tests to force expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live returns the entry at key if present and unexpired. Caller holds mu.
func (s *MemoryStore) live(key string) ([]byte, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// Incr atomically increments the counter at key.
func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

// Set stores value at key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.entries[key] = memoryEntry{value: cp, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the value at key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key)
	if !ok {
		return nil, domain.ErrNotFound("key %q not found", key)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Update applies fn to the value at key while holding the store lock, so
// the read-modify-write is atomic with respect to concurrent writers.
func (s *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.live(key)
	if !ok {
		return domain.ErrNotFound("key %q not found", key)
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	s.entries[key] = memoryEntry{value: next, expiresAt: s.now().Add(ttl)}
	return nil
}

// Keys returns all live keys matching the glob pattern.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.entries {
		if _, ok := s.live(k); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
