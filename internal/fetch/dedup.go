// Package fetch wraps a batched upstream with a cache so that repeated
// requests for the same ids as of the same date hit the upstream once.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leonardcser/bonds-mcp/internal/cache"
	"github.com/leonardcser/bonds-mcp/internal/logger"
	"github.com/leonardcser/bonds-mcp/internal/metrics"
)

// Deduplicator splits each request into cached and missing ids, fetches the
// missing ones in a single upstream call and merges the two.
// It is safe for concurrent use by multiple goroutines.
type Deduplicator struct {
	upstream     Fetcher
	cache        cache.Handle[string, Slot]
	observer     Observer
	metrics      *metrics.Recorder
	clock        cache.Clock
	singleFlight bool
	fetchTimeout time.Duration

	// mu makes the scan-and-placeholder step and the merge step atomic
	// with respect to other requests. It is never held across Fetch.
	mu       sync.Mutex
	inflight map[string]*call
}

// call is one upstream fetch other requests can wait on.
type call struct {
	done    chan struct{}
	records map[string]json.RawMessage
	err     error
}

type waiter struct {
	id   string
	call *call
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithObserver sets the callback notified when an id finishes loading.
func WithObserver(o Observer) Option {
	return func(d *Deduplicator) { d.observer = o }
}

// WithSingleFlight controls whether a request that finds an id already being
// fetched by another request waits for that fetch (true, the default) or
// fetches it again.
func WithSingleFlight(enabled bool) Option {
	return func(d *Deduplicator) { d.singleFlight = enabled }
}

// WithFetchTimeout bounds each upstream call. The call is detached from the
// caller's context because other requests may be waiting on it, so this is
// the only limit besides the upstream's own.
func WithFetchTimeout(d time.Duration) Option {
	return func(dd *Deduplicator) { dd.fetchTimeout = d }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Deduplicator) { d.metrics = r }
}

// WithClock sets the time source for expiry checks. It should match the
// cache's clock.
func WithClock(c cache.Clock) Option {
	return func(d *Deduplicator) { d.clock = c }
}

// New wraps upstream with c.
func New(upstream Fetcher, c cache.Handle[string, Slot], opts ...Option) (*Deduplicator, error) {
	if c == nil {
		return nil, ErrNoCache
	}
	if upstream == nil {
		return nil, ErrNoUpstream
	}
	d := &Deduplicator{
		upstream:     upstream,
		cache:        c,
		clock:        cache.SystemClock{},
		singleFlight: true,
		inflight:     make(map[string]*call),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Request returns the records for q.IDs as of q.Date.
//
// Cached ids come first in request order, then freshly fetched ids in the
// order the upstream returned them, then ids served by another request's
// fetch. Ids the upstream does not know are left out and reported to the
// observer as ErrNotFound. If the upstream call fails the error is returned
// and the placeholders written for this call stay in the cache as loading.
// Canceling ctx stops waiting on other requests' fetches but does not abort
// the upstream call this request owns, since others may be waiting on it.
func (d *Deduplicator) Request(ctx context.Context, q Query) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := uuid.NewString()
	own := &call{done: make(chan struct{})}
	results := make([]Result, 0, len(q.IDs))

	missing, waits := d.scan(q, own, &results)
	logger.Debugf("request %s date=%s ids=%d hits=%d missing=%d shared=%d",
		reqID, q.Date, len(q.IDs), len(results), len(missing), len(waits))

	if len(missing) > 0 {
		d.metrics.Fetch()
		records, err := d.fetch(ctx, q.Date, missing, own)
		if err != nil {
			d.metrics.UpstreamError()
			d.fail(q.Date, missing, own, err)
			logger.Warnf("request %s: upstream fetch for %d ids failed: %v", reqID, len(missing), err)
			return nil, fmt.Errorf("fetch %s: %w", q.Date, err)
		}
		events := d.merge(q.Date, missing, records, own, &results)
		d.notify(events)
	}

	for _, w := range waits {
		select {
		case <-w.call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if w.call.err != nil {
			return nil, fmt.Errorf("fetch %s: shared fetch of %s: %w", q.Date, w.id, w.call.err)
		}
		if data, ok := w.call.records[w.id]; ok {
			results = append(results, Result{ID: w.id, Data: data})
		}
	}
	return results, nil
}

// fetch calls the upstream for missing. It releases waiters with
// ErrUpstreamPanicked if the upstream panics, then lets the panic continue.
func (d *Deduplicator) fetch(ctx context.Context, date string, missing []string, own *call) (records []Record, err error) {
	returned := false
	defer func() {
		if !returned {
			d.fail(date, missing, own, ErrUpstreamPanicked)
		}
	}()

	fctx := context.WithoutCancel(ctx)
	if d.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, d.fetchTimeout)
		defer cancel()
	}
	records, err = d.upstream.Fetch(fctx, date, missing)
	returned = true
	return records, err
}

// scan sorts q.IDs into hits (appended to results), ids this request must
// fetch, and ids another request is already fetching. Placeholders for the
// missing ids are written before scan returns.
func (d *Deduplicator) scan(q Query, own *call, results *[]Result) (missing []string, waits []waiter) {
	now := d.clock.Now()
	seen := make(map[string]struct{}, len(q.IDs))

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range q.IDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		key := CompositeKey(q.Date, id)

		if slot, ok := d.lookup(key, now); ok {
			*results = append(*results, Result{ID: id, Data: slot.Data})
			d.metrics.Hit()
			continue
		}
		if c, ok := d.inflight[key]; ok && d.singleFlight {
			waits = append(waits, waiter{id: id, call: c})
			d.metrics.Wait()
			continue
		}
		missing = append(missing, id)
		d.cache.Set(key, Slot{ID: id, Loading: true})
		d.inflight[key] = own
		d.metrics.Miss()
	}
	return missing, waits
}

// lookup returns a usable cached slot. Expired entries are dropped.
func (d *Deduplicator) lookup(key string, now time.Time) (Slot, bool) {
	e, ok := d.cache.Get(key)
	if !ok || e.Value.Loading {
		return Slot{}, false
	}
	if expired, err := d.cache.IsExpired(key, now); err == nil && expired {
		d.cache.Delete(key)
		return Slot{}, false
	}
	return e.Value, true
}

// merge stores the fetched records, drops placeholders for ids the upstream
// did not return and releases requests waiting on own.
func (d *Deduplicator) merge(date string, missing []string, records []Record, own *call, results *[]Result) []Event {
	pending := make(map[string]bool, len(missing))
	for _, id := range missing {
		pending[id] = true
	}
	got := make(map[string]json.RawMessage, len(records))
	events := make([]Event, 0, len(missing))

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range records {
		if !pending[r.ID] {
			logger.Warnf("date %s: ignoring unrequested or duplicate record %q", date, r.ID)
			continue
		}
		pending[r.ID] = false
		d.cache.Set(CompositeKey(date, r.ID), Slot{ID: r.ID, Data: r.Data})
		got[r.ID] = r.Data
		*results = append(*results, Result{ID: r.ID, Data: r.Data})
		events = append(events, Event{Date: date, ID: r.ID, Data: r.Data})
	}
	for _, id := range missing {
		if !pending[id] {
			continue
		}
		d.cache.Delete(CompositeKey(date, id))
		events = append(events, Event{Date: date, ID: id, Err: ErrNotFound})
		d.metrics.NotFound()
	}
	d.release(date, missing, own, got, nil)
	return events
}

// fail releases waiters with err. Placeholders are left in place.
func (d *Deduplicator) fail(date string, missing []string, own *call, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(date, missing, own, nil, err)
}

// release must be called with d.mu held.
func (d *Deduplicator) release(date string, missing []string, own *call, records map[string]json.RawMessage, err error) {
	for _, id := range missing {
		key := CompositeKey(date, id)
		if d.inflight[key] == own {
			delete(d.inflight, key)
		}
	}
	own.records = records
	own.err = err
	close(own.done)
}

func (d *Deduplicator) notify(events []Event) {
	if d.observer == nil {
		return
	}
	for _, ev := range events {
		d.observer(ev)
	}
}
