package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore[string, int](0, newFakeClock())

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Set("a", 1)
	e, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, e.Value)
	assert.True(t, s.Has("a"))

	s.Set("a", 2)
	e, _ = s.Get("a")
	assert.Equal(t, 2, e.Value, "overwrite replaces the entry")

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.False(t, s.Has("a"))
}

func TestStore_DefaultTTL(t *testing.T) {
	s := NewStore[string, int](-1, nil)
	assert.Equal(t, DefaultTTL, s.DefaultTTL())
}

func TestStore_IsExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewStore[string, int](2*time.Second, clock)
	start := clock.Now()
	s.Set("a", 1)

	tests := []struct {
		name    string
		offset  time.Duration
		expired bool
	}{
		{"fresh", 0, false},
		{"before ttl", 1500 * time.Millisecond, false},
		{"exactly ttl", 2 * time.Second, false},
		{"sub-millisecond past ttl", 2*time.Second + 500*time.Microsecond, false},
		{"past ttl", 2500 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsExpired("a", start.Add(tt.offset))
			require.NoError(t, err)
			assert.Equal(t, tt.expired, got)
		})
	}
}

func TestStore_IsExpiredUsesOverride(t *testing.T) {
	clock := newFakeClock()
	s := NewStore[string, int](2*time.Second, clock)
	start := clock.Now()
	s.SetWithTTL("long", 1, 10*time.Second)
	s.SetWithTTL("zero", 2, 0)

	expired, err := s.IsExpired("long", start.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = s.IsExpired("long", start.Add(11*time.Second))
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = s.IsExpired("zero", start.Add(time.Millisecond))
	require.NoError(t, err)
	assert.True(t, expired, "a zero override is still an override")

	e, _ := s.Get("long")
	assert.True(t, e.HasTTL)
	assert.Equal(t, 10*time.Second, e.TTL)
	assert.Equal(t, start, e.CreatedAt)
}

func TestStore_IsExpiredErrors(t *testing.T) {
	s := NewStore[string, int](time.Second, newFakeClock())
	s.Set("a", 1)

	_, err := s.IsExpired("a", time.Time{})
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	_, err = s.IsExpired("missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore[string, int](time.Second, nil)
	s.Set("a", 1)
	s.Set("b", 2)
	require.Equal(t, 2, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("a"))
}
