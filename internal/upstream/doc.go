// Package upstream provides the bond data sources the cache sits in front of:
// a bbolt-backed store with its Unix socket daemon and client, and an HTTP
// source for a remote bonds API.
package upstream

import "github.com/leonardcser/bonds-mcp/internal/fetch"

var (
	_ fetch.Fetcher = (*BoltStore)(nil)
	_ fetch.Fetcher = (*SocketClient)(nil)
	_ fetch.Fetcher = (*HTTPSource)(nil)
	_ Store         = (*BoltStore)(nil)
	_ Writer        = (*SocketClient)(nil)
)
