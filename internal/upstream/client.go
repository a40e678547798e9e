package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
)

// SocketClient talks to the bond store daemon over a Unix socket. It
// implements fetch.Fetcher.
type SocketClient struct {
	socketPath string
	dial       func(ctx context.Context) (net.Conn, error)
}

func NewSocketClient(socketPath string) *SocketClient {
	c := &SocketClient{socketPath: socketPath}
	c.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: 500 * time.Millisecond}
		return d.DialContext(ctx, "unix", c.socketPath)
	}
	return c
}

// roundTrip sends one request on a fresh connection and decodes the reply.
func (c *SocketClient) roundTrip(ctx context.Context, req Request) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	var resp Response
	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, err
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

func (c *SocketClient) Fetch(ctx context.Context, date string, ids []string) ([]fetch.Record, error) {
	resp, err := c.roundTrip(ctx, Request{Op: OpFetch, Date: date, IDs: ids})
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *SocketClient) Put(ctx context.Context, date, id string, data json.RawMessage) error {
	_, err := c.roundTrip(ctx, Request{Op: OpPut, Date: date, ID: id, Data: data})
	return err
}

func (c *SocketClient) Delete(ctx context.Context, date, id string) error {
	_, err := c.roundTrip(ctx, Request{Op: OpDelete, Date: date, ID: id})
	return err
}
