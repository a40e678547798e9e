package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bondsServer(t *testing.T, contentType, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bonds/20180120", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &requested)
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func TestHTTPSource_JSON(t *testing.T) {
	srv, requested := bondsServer(t, "application/json",
		`[{"isin":"RU000A0JU4L3","data":{"date":"20180120","price":101.5}}]`)
	s := NewHTTPSource(srv.URL+"/", 5*time.Second)

	got, err := s.Fetch(context.Background(), "20180120", []string{"XS0971721963", "RU000A0JU4L3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"XS0971721963", "RU000A0JU4L3"}, *requested)
	require.Len(t, got, 1)
	assert.Equal(t, "RU000A0JU4L3", got[0].ID)
	assert.JSONEq(t, `{"date":"20180120","price":101.5}`, string(got[0].Data))
}

func TestHTTPSource_HTMLTable(t *testing.T) {
	page := `<html><body><table class="bonds">
<tr><th>ISIN</th><th>Price</th></tr>
<tr data-isin="XS0971721963"><td data-field="price"> 99.8 </td><td data-field="currency">USD</td></tr>
<tr data-isin="RU000A0JU4L3"><td data-field="price">101.5</td><td>ignored</td></tr>
</table></body></html>`
	srv, _ := bondsServer(t, "text/html; charset=utf-8", page)
	s := NewHTTPSource(srv.URL, 0)

	got, err := s.Fetch(context.Background(), "20180120", []string{"XS0971721963", "RU000A0JU4L3"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "XS0971721963", got[0].ID)
	assert.JSONEq(t, `{"price":"99.8","currency":"USD"}`, string(got[0].Data))
	assert.JSONEq(t, `{"price":"101.5"}`, string(got[1].Data))
}

func TestHTTPSource_BadJSON(t *testing.T) {
	srv, _ := bondsServer(t, "application/json", `{"not":"a list"}`)
	_, err := NewHTTPSource(srv.URL, 0).Fetch(context.Background(), "20180120", []string{"X"})
	assert.Error(t, err)
}

func TestHTTPSource_UnsupportedContent(t *testing.T) {
	srv, _ := bondsServer(t, "application/pdf", "%PDF-1.4")
	_, err := NewHTTPSource(srv.URL, 0).Fetch(context.Background(), "20180120", []string{"X"})
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestHTTPSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, 0).Fetch(context.Background(), "20180120", []string{"X"})
	assert.Error(t, err)
}

func TestDecodeJSON_AcceptsIDKey(t *testing.T) {
	got, err := decodeJSON([]byte(`[{"id":"A","data":1},{"data":2}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
}
