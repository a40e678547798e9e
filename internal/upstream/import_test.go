package upstream

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_ThroughSocket(t *testing.T) {
	store := openTestBolt(t)
	c := pipeClient(t, store)
	ctx := context.Background()

	in := strings.NewReader(`{"date":"20180120","isin":"XS0971721963","data":{"price":101.5}}
{"date":"20180120","id":"RU000A0JU4L3","data":{"price":99.1}}
{"date":"20180121","isin":"XS0971721963","data":{"price":101.7}}
`)
	n, err := Import(ctx, c, in)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := c.Fetch(ctx, "20180120", []string{"RU000A0JU4L3", "XS0971721963"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "RU000A0JU4L3", got[0].ID)
	assert.JSONEq(t, `{"price":101.5}`, string(got[1].Data))

	got, err = store.Fetch(ctx, "20180121", []string{"XS0971721963"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"price":101.7}`, string(got[0].Data))
}

func TestImport_StopsAtRejectedRecord(t *testing.T) {
	store := openTestBolt(t)
	c := pipeClient(t, store)

	in := strings.NewReader(`{"date":"20180120","isin":"A","data":{}}
{"date":"20180120","data":{}}
{"date":"20180120","isin":"C","data":{}}`)
	n, err := Import(context.Background(), c, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
	assert.Contains(t, err.Error(), ErrEmptyKey.Error())
	assert.Equal(t, 1, n)
}

func TestImport_MalformedJSON(t *testing.T) {
	c := pipeClient(t, openTestBolt(t))
	n, err := Import(context.Background(), c, strings.NewReader(`{"date":`))
	require.Error(t, err)
	assert.Equal(t, 0, n)
}
