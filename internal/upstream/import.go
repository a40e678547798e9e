package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Writer stores and removes single records. SocketClient implements it.
type Writer interface {
	Put(ctx context.Context, date, id string, data json.RawMessage) error
	Delete(ctx context.Context, date, id string) error
}

// ImportRecord is one item of an import stream:
//
//	{"date": "20180120", "isin": "XS0971721963", "data": {"price": 101.5}}
//
// "id" is accepted in place of "isin".
type ImportRecord struct {
	Date string          `json:"date"`
	ISIN string          `json:"isin"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func (r ImportRecord) key() string {
	if r.ISIN != "" {
		return r.ISIN
	}
	return r.ID
}

// Import writes every record read from r, a stream of JSON objects
// (newline-delimited or not), and returns how many were stored. It stops at
// the first record the writer rejects.
func Import(ctx context.Context, w Writer, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		var rec ImportRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("record %d: %w", n+1, err)
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := w.Put(ctx, rec.Date, rec.key(), rec.Data); err != nil {
			return n, fmt.Errorf("record %d (%s %s): %w", n+1, rec.Date, rec.key(), err)
		}
		n++
	}
}
