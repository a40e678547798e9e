package fetch

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is reported to the observer for ids the upstream did not return.
var ErrNotFound = errors.New("fetch: id not found upstream")

// ErrUpstreamPanicked is returned to requests that were waiting on an upstream
// call that panicked.
var ErrUpstreamPanicked = errors.New("fetch: upstream panicked")

// ErrNoCache is returned by New when no cache handle is supplied.
var ErrNoCache = errors.New("fetch: cache repository is required")

// ErrNoUpstream is returned by New when no upstream is supplied.
var ErrNoUpstream = errors.New("fetch: upstream is required")

// Record is one item returned by an upstream.
type Record struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Fetcher is the batched upstream. It may return fewer records than ids
// requested; a missing record means not found, not failure.
type Fetcher interface {
	Fetch(ctx context.Context, date string, ids []string) ([]Record, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, date string, ids []string) ([]Record, error)

func (f FetcherFunc) Fetch(ctx context.Context, date string, ids []string) ([]Record, error) {
	return f(ctx, date, ids)
}

// Query asks for ids as of date.
type Query struct {
	Date string   `json:"date"`
	IDs  []string `json:"ids"`
}

// Result is one item of a Request response.
type Result struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	IsLoading bool            `json:"isLoading"`
}

// Slot is the cached value per composite key. Loading marks a placeholder
// written before the upstream answered.
type Slot struct {
	ID      string
	Data    json.RawMessage
	Loading bool
}

// Event is an observer notification. Err is nil when Data arrived and
// ErrNotFound when the upstream dropped the id.
type Event struct {
	Date string
	ID   string
	Data json.RawMessage
	Err  error
}

// Observer receives load-state changes. It is called without internal locks
// held; panics are not recovered.
type Observer func(Event)

// CompositeKey is the cache key for id as of date.
func CompositeKey(date, id string) string { return date + id }
