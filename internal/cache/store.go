package cache

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is used when a store is built without an explicit TTL.
const DefaultTTL = 2 * time.Second

var (
	ErrNotFound         = errors.New("cache: not found")
	ErrMissingTimestamp = errors.New("cache: time to compare with is mandatory")
)

// Clock supplies the creation time recorded on every write.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Entry is a stored value together with its expiry metadata.
// HasTTL=false means the store's default TTL applies.
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
	HasTTL    bool
}

// Store is an in-memory map whose entries expire after a default TTL or a
// per-entry override. Expiry is advisory: nothing is removed in the background,
// callers check IsExpired before trusting a hit.
// It is safe for concurrent use by multiple goroutines.
type Store[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]Entry[V]
	defaultTTL time.Duration
	clock      Clock
}

// NewStore creates an empty store. A ttl <= 0 falls back to DefaultTTL and a
// nil clock to SystemClock.
func NewStore[K comparable, V any](ttl time.Duration, clock Clock) *Store[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store[K, V]{
		items:      make(map[K]Entry[V]),
		defaultTTL: ttl,
		clock:      clock,
	}
}

// DefaultTTL returns the TTL applied to entries without an override.
func (s *Store[K, V]) DefaultTTL() time.Duration { return s.defaultTTL }

func (s *Store[K, V]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Set stores value under key, replacing any previous entry.
func (s *Store[K, V]) Set(key K, value V) {
	s.put(key, Entry[V]{Value: value})
}

// SetWithTTL stores value with its own TTL instead of the default.
func (s *Store[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	s.put(key, Entry[V]{Value: value, TTL: ttl, HasTTL: true})
}

func (s *Store[K, V]) put(key K, e Entry[V]) {
	e.CreatedAt = s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = e
}

func (s *Store[K, V]) Get(key K) (Entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	return e, ok
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	return true
}

// IsExpired reports whether the entry for key is older than its TTL as of asOf.
// Ages are compared in whole milliseconds.
func (s *Store[K, V]) IsExpired(key K, asOf time.Time) (bool, error) {
	if asOf.IsZero() {
		return false, ErrMissingTimestamp
	}
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return false, ErrNotFound
	}
	ttl := s.defaultTTL
	if e.HasTTL {
		ttl = e.TTL
	}
	return asOf.Sub(e.CreatedAt).Milliseconds() > ttl.Milliseconds(), nil
}

func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[K]Entry[V])
}

// Len returns the number of resident entries, expired ones included.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
