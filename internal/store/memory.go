package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no fresh entry exists for a key.
	ErrNotFound = errors.New("no cached response for key")
)

type entry struct {
	body    []byte
	savedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory response cache with bounded size
// and age. Entries older than maxAge are never served.
type MemoryStore struct {
	mu sync.RWMutex

	// key: request key (e.g. canonical URL), value: cached body
	data map[string]entry

	// retention configuration
	maxEntries int           // max number of cached responses
	maxAge     time.Duration // max age of a cached response

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0 it is treated as unlimited; if maxAge is <= 0 entries
// never expire.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save stores body under key and enforces retention.
func (s *MemoryStore) Save(key string, body []byte) {
	cp := make([]byte, len(body))
	copy(cp, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.data[key] = entry{body: cp, savedAt: now}

	// Enforce retention by age.
	s.evictExpiredLocked(now)

	// Enforce retention by count, oldest first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var (
			oldestKey string
			oldestAt  time.Time
		)
		for k, e := range s.data {
			if oldestKey == "" || e.savedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.savedAt
			}
		}
		delete(s.data, oldestKey)
	}
}

// Get returns a copy of the cached body for key if it is still fresh.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || s.expired(e, s.now()) {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(e.body))
	copy(cp, e.body)
	return cp, nil
}

// Len returns the number of entries held, fresh or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Purge drops every expired entry.
func (s *MemoryStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(s.now())
}

func (s *MemoryStore) expired(e entry, now time.Time) bool {
	return s.maxAge > 0 && now.Sub(e.savedAt) >= s.maxAge
}

func (s *MemoryStore) evictExpiredLocked(now time.Time) {
	if s.maxAge <= 0 {
		return
	}
	for k, e := range s.data {
		if s.expired(e, now) {
			delete(s.data, k)
		}
	}
}
