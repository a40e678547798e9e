package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind selects the eviction behavior of a cache built by New.
type Kind int

const (
	// KindPlain keeps every entry until it is deleted.
	KindPlain Kind = iota
	// KindLRU bounds the number of entries and evicts the least recently used.
	KindLRU
)

var ErrUnknownKind = errors.New("cache: unknown kind")

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindLRU:
		return "lru"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a config value to a Kind. The empty string means plain.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "default":
		return KindPlain, nil
	case "lru":
		return KindLRU, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Config describes a cache to build.
type Config[K comparable] struct {
	Kind Kind
	// TTL is the default entry lifetime; <= 0 means DefaultTTL.
	TTL time.Duration
	// Limit is the LRU capacity; <= 0 means DefaultLimit. Ignored for KindPlain.
	Limit int
	// Clock defaults to SystemClock.
	Clock Clock
	// OnEvict is called with each key evicted by the LRU policy.
	OnEvict func(K)
}

// New builds a store with the configured TTL and, for KindLRU, layers an LRU
// policy over it.
func New[K comparable, V any](cfg Config[K]) (Handle[K, V], error) {
	store := NewStore[K, V](cfg.TTL, cfg.Clock)
	switch cfg.Kind {
	case KindPlain:
		return store, nil
	case KindLRU:
		var opts []LRUOption[K]
		if cfg.OnEvict != nil {
			opts = append(opts, WithEvictHook(cfg.OnEvict))
		}
		lru, err := NewLRU(store, cfg.Limit, opts...)
		if err != nil {
			return nil, err
		}
		return lru, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, cfg.Kind)
	}
}
