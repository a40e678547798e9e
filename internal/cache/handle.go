package cache

import "time"

// Handle defines the cache contract shared by the plain store and the LRU
// policy. Implementations must be safe for concurrent use by multiple goroutines.
type Handle[K comparable, V any] interface {
	Has(key K) bool
	Get(key K) (Entry[V], bool)
	Set(key K, value V)
	SetWithTTL(key K, value V, ttl time.Duration)
	Delete(key K) bool
	IsExpired(key K, asOf time.Time) (bool, error)
	Clear()
	Len() int
}

var (
	_ Handle[string, int] = (*Store[string, int])(nil)
	_ Handle[string, int] = (*LRU[string, int])(nil)
)
