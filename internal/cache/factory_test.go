package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Plain(t *testing.T) {
	h, err := New[string, int](Config[string]{Kind: KindPlain, TTL: 3 * time.Second})
	require.NoError(t, err)

	s, ok := h.(*Store[string, int])
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, s.DefaultTTL())
}

func TestNew_LRU(t *testing.T) {
	var evicted []string
	h, err := New[string, int](Config[string]{
		Kind:    KindLRU,
		Limit:   1,
		OnEvict: func(k string) { evicted = append(evicted, k) },
	})
	require.NoError(t, err)

	l, ok := h.(*LRU[string, int])
	require.True(t, ok)
	assert.Equal(t, 1, l.Limit())
	assert.Equal(t, DefaultTTL, l.store.DefaultTTL())

	h.Set("a", 1)
	h.Set("b", 2)
	assert.Equal(t, []string{"a"}, evicted)
}

func TestNew_LRUDefaultLimit(t *testing.T) {
	h, err := New[string, int](Config[string]{Kind: KindLRU})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, h.(*LRU[string, int]).Limit())
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New[string, int](Config[string]{Kind: Kind(42)})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindPlain, false},
		{"plain", KindPlain, false},
		{"LRU", KindLRU, false},
		{" lru ", KindLRU, false},
		{"lfu", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
