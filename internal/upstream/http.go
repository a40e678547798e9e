package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 4 * 1024 * 1024 // 4MB

	userAgent = "bonds-mcp/0.1"
)

var ErrUnsupportedContent = errors.New("upstream: unsupported content type")

// HTTPSource fetches bond records from a remote API:
//
//	POST {base}/bonds/{date}
//	body: ["XS0971721963", "RU000A0JU4L3"]
//
// The reply is either JSON, [{"isin": "...", "data": {...}}], or an HTML table
// whose rows carry data-isin and whose cells carry data-field.
type HTTPSource struct {
	base string
	c    *colly.Collector
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		colly.MaxBodySize(MaxResponseSize),
		colly.UserAgent(userAgent),
	)
	c.SetRequestTimeout(timeout)
	return &HTTPSource{base: strings.TrimRight(baseURL, "/"), c: c}
}

func (s *HTTPSource) Fetch(ctx context.Context, date string, ids []string) ([]fetch.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	// Callbacks are per call; the shared collector only carries config.
	c := s.c.Clone()
	c.Context = ctx

	var (
		records  []fetch.Record
		parseErr error
		handled  bool
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Content-Type", "application/json")
		r.Headers.Set("Accept", "application/json, text/html;q=0.9")
	})
	c.OnResponse(func(r *colly.Response) {
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		switch {
		case strings.Contains(ct, "json"):
			handled = true
			records, parseErr = decodeJSON(r.Body)
		case strings.Contains(ct, "text/html"):
			handled = true
		}
	})
	c.OnHTML("tr[data-isin]", func(e *colly.HTMLElement) {
		rec, err := rowRecord(e.Attr("data-isin"), e.DOM)
		if err != nil {
			parseErr = err
			return
		}
		records = append(records, rec)
	})

	endpoint := fmt.Sprintf("%s/bonds/%s", s.base, url.PathEscape(date))
	if err := c.PostRaw(endpoint, body); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if !handled {
		return nil, ErrUnsupportedContent
	}
	return records, nil
}

type wireRecord struct {
	ISIN string          `json:"isin"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func decodeJSON(b []byte) ([]fetch.Record, error) {
	var wire []wireRecord
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, fmt.Errorf("decode bonds response: %w", err)
	}
	out := make([]fetch.Record, 0, len(wire))
	for _, w := range wire {
		id := w.ISIN
		if id == "" {
			id = w.ID
		}
		if id == "" {
			continue
		}
		out = append(out, fetch.Record{ID: id, Data: w.Data})
	}
	return out, nil
}

// rowRecord turns <td data-field="name">value</td> cells into a JSON object.
func rowRecord(isin string, row *goquery.Selection) (fetch.Record, error) {
	fields := make(map[string]string)
	row.Find("td[data-field]").Each(func(_ int, cell *goquery.Selection) {
		name := strings.TrimSpace(cell.AttrOr("data-field", ""))
		if name == "" {
			return
		}
		fields[name] = singleLine(cell.Text())
	})
	data, err := json.Marshal(fields)
	if err != nil {
		return fetch.Record{}, err
	}
	return fetch.Record{ID: strings.TrimSpace(isin), Data: data}, nil
}

// singleLine trims and collapses internal whitespace/newlines to single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
