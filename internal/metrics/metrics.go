// Package metrics exports cache and upstream counters to Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "bonds_mcp"

// Recorder counts cache outcomes. A nil *Recorder is valid and records nothing.
type Recorder struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	waits          prometheus.Counter
	fetches        prometheus.Counter
	notFound       prometheus.Counter
	upstreamErrors prometheus.Counter
	evictions      prometheus.Counter
}

// New creates a Recorder and registers its collectors with reg when reg is non-nil.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		hits:           counter("cache", "hits_total", "Requested ids served from the cache."),
		misses:         counter("cache", "misses_total", "Requested ids that had to be fetched."),
		waits:          counter("cache", "shared_waits_total", "Requested ids that joined a fetch already in flight."),
		fetches:        counter("upstream", "fetches_total", "Batched upstream fetch calls."),
		notFound:       counter("upstream", "not_found_total", "Ids the upstream did not return."),
		upstreamErrors: counter("upstream", "errors_total", "Upstream fetch calls that failed."),
		evictions:      counter("cache", "evictions_total", "Entries evicted by the LRU policy."),
	}
	if reg != nil {
		reg.MustRegister(r.hits, r.misses, r.waits, r.fetches, r.notFound, r.upstreamErrors, r.evictions)
	}
	return r
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func (r *Recorder) Hit() {
	if r != nil {
		r.hits.Inc()
	}
}

func (r *Recorder) Miss() {
	if r != nil {
		r.misses.Inc()
	}
}

func (r *Recorder) Wait() {
	if r != nil {
		r.waits.Inc()
	}
}

func (r *Recorder) Fetch() {
	if r != nil {
		r.fetches.Inc()
	}
}

func (r *Recorder) NotFound() {
	if r != nil {
		r.notFound.Inc()
	}
}

func (r *Recorder) UpstreamError() {
	if r != nil {
		r.upstreamErrors.Inc()
	}
}

// Evicted has the shape of an LRU evict hook.
func (r *Recorder) Evicted(string) {
	if r != nil {
		r.evictions.Inc()
	}
}
