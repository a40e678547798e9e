package cache

import (
	"errors"
	"iter"
	"sync"
	"time"
)

// DefaultLimit is the LRU capacity used when none is configured.
const DefaultLimit = 100

// ErrTypeMismatch is returned when an LRU is built without a backing store.
var ErrTypeMismatch = errors.New("cache: lru requires a backing store")

const none = -1

// node is one link of the recency chain. Links are arena indices, not pointers.
type node[K comparable] struct {
	key  K
	prev int // towards tail (older)
	next int // towards head (newer)
	gen  uint64
	live bool
}

// LRU layers least-recently-used eviction over a Store.
//
// The recency chain runs from tail (least recent) to head (most recent). Nodes
// live in an arena and are recycled through a free list, so detaching and
// attaching only rewrites indices. Reads and writes both count as use.
//
// The LRU owns every mutation of the wrapped store; writing to the store
// directly leaves keys without a chain node, and Get reports those as absent.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	store *Store[K, V]
	limit int

	index map[K]int
	nodes []node[K]
	free  []int
	head  int
	tail  int
	epoch uint64

	onEvict func(K)
}

// LRUOption configures an LRU.
type LRUOption[K comparable] func(*lruOptions[K])

type lruOptions[K comparable] struct {
	onEvict func(K)
}

// WithEvictHook registers fn to be called with every evicted key. fn runs
// under the cache lock and must not call back into the cache.
func WithEvictHook[K comparable](fn func(K)) LRUOption[K] {
	return func(o *lruOptions[K]) { o.onEvict = fn }
}

// NewLRU wraps store with a capacity of limit entries (DefaultLimit if limit <= 0).
func NewLRU[K comparable, V any](store *Store[K, V], limit int, opts ...LRUOption[K]) (*LRU[K, V], error) {
	if store == nil {
		return nil, ErrTypeMismatch
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	var o lruOptions[K]
	for _, opt := range opts {
		opt(&o)
	}
	return &LRU[K, V]{
		store:   store,
		limit:   limit,
		index:   make(map[K]int),
		head:    none,
		tail:    none,
		onEvict: o.onEvict,
	}, nil
}

// Has reports whether key is resident. A hit counts as use. Like Get, it
// reports keys without a chain node as absent.
func (l *LRU[K, V]) Has(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.store.Has(key) {
		return false
	}
	return l.touch(key)
}

// Get returns the entry for key and promotes it to most recently used.
func (l *LRU[K, V]) Get(key K) (Entry[V], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.store.Get(key)
	if !ok {
		return Entry[V]{}, false
	}
	if !l.touch(key) {
		return Entry[V]{}, false
	}
	return e, true
}

func (l *LRU[K, V]) Set(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admit(key)
	l.store.Set(key, value)
}

func (l *LRU[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admit(key)
	l.store.SetWithTTL(key, value, ttl)
}

// Delete removes key from the store and detaches its node.
func (l *LRU[K, V]) Delete(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok := l.store.Delete(key)
	if idx, linked := l.index[key]; linked {
		l.detach(idx)
		l.release(idx)
		delete(l.index, key)
	}
	return ok
}

// IsExpired does not count as use.
func (l *LRU[K, V]) IsExpired(key K, asOf time.Time) (bool, error) {
	return l.store.IsExpired(key, asOf)
}

func (l *LRU[K, V]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Clear()
	l.index = make(map[K]int)
	l.nodes = nil
	l.free = nil
	l.head, l.tail = none, none
	l.epoch++
}

// Len returns the number of keys on the recency chain. It never exceeds Limit.
func (l *LRU[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.index)
}

func (l *LRU[K, V]) Limit() int { return l.limit }

// Keys yields resident keys from least to most recently used. The sequence is
// lazy and can be ranged over again. The lock is released between steps, so
// the loop body may use the cache; traversal stops if the current node is
// evicted or deleted underneath it.
func (l *LRU[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		l.mu.Lock()
		epoch := l.epoch
		idx := l.tail
		var gen uint64
		if idx != none {
			gen = l.nodes[idx].gen
		}
		l.mu.Unlock()

		for idx != none {
			l.mu.Lock()
			if l.epoch != epoch || !l.nodes[idx].live || l.nodes[idx].gen != gen {
				l.mu.Unlock()
				return
			}
			n := l.nodes[idx]
			idx = n.next
			if idx != none {
				gen = l.nodes[idx].gen
			}
			l.mu.Unlock()

			if !yield(n.key) {
				return
			}
		}
	}
}

// touch moves key to the head. It reports false when key has no chain node.
func (l *LRU[K, V]) touch(key K) bool {
	idx, ok := l.index[key]
	if !ok {
		return false
	}
	if idx != l.head {
		l.detach(idx)
		l.attachHead(idx)
	}
	return true
}

// admit makes room for key and links it at the head. The tail is evicted
// before the new node is linked, so the chain never exceeds the limit.
func (l *LRU[K, V]) admit(key K) {
	if l.touch(key) {
		return
	}
	if len(l.index) >= l.limit {
		l.evict()
	}
	idx := l.alloc(key)
	l.index[key] = idx
	l.attachHead(idx)
}

func (l *LRU[K, V]) evict() {
	idx := l.tail
	if idx == none {
		return
	}
	key := l.nodes[idx].key
	l.store.Delete(key)
	l.detach(idx)
	l.release(idx)
	delete(l.index, key)
	if l.onEvict != nil {
		l.onEvict(key)
	}
}

func (l *LRU[K, V]) detach(idx int) {
	n := &l.nodes[idx]
	if n.prev != none {
		l.nodes[n.prev].next = n.next
	} else {
		l.tail = n.next
	}
	if n.next != none {
		l.nodes[n.next].prev = n.prev
	} else {
		l.head = n.prev
	}
	n.prev, n.next = none, none
}

func (l *LRU[K, V]) attachHead(idx int) {
	n := &l.nodes[idx]
	n.prev, n.next = l.head, none
	if l.head == none {
		l.tail = idx
	} else {
		l.nodes[l.head].next = idx
	}
	l.head = idx
}

func (l *LRU[K, V]) alloc(key K) int {
	if k := len(l.free); k > 0 {
		idx := l.free[k-1]
		l.free = l.free[:k-1]
		n := &l.nodes[idx]
		n.key, n.live = key, true
		n.prev, n.next = none, none
		return idx
	}
	l.nodes = append(l.nodes, node[K]{key: key, prev: none, next: none, live: true})
	return len(l.nodes) - 1
}

// release returns a detached slot to the free list. Bumping gen invalidates
// any traversal parked on it.
func (l *LRU[K, V]) release(idx int) {
	var zero K
	n := &l.nodes[idx]
	n.key = zero
	n.live = false
	n.gen++
	l.free = append(l.free, idx)
}
