package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Hit()
	r.Hit()
	r.Miss()
	r.Fetch()
	r.NotFound()
	r.Evicted("20180120XS0971721963")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.notFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.evictions))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.upstreamErrors))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 7)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Hit()
		r.Miss()
		r.Wait()
		r.Fetch()
		r.NotFound()
		r.UpstreamError()
		r.Evicted("k")
	})
}
