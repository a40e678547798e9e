package upstream

import (
	"encoding/json"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
)

// JSON protocol for the bond store daemon over a Unix domain socket.
// Requests and responses are newline-delimited JSON objects; a connection
// may carry several request/response pairs.

const (
	OpFetch  = "fetch"
	OpPut    = "put"
	OpDelete = "delete"
)

type Request struct {
	Op   string          `json:"op"` // "fetch" | "put" | "delete"
	Date string          `json:"date"`
	IDs  []string        `json:"ids,omitempty"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Response struct {
	OK      bool           `json:"ok"`
	Records []fetch.Record `json:"records,omitempty"`
	Error   string         `json:"error,omitempty"`
}
