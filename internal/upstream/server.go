package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/leonardcser/bonds-mcp/internal/fetch"
	"github.com/leonardcser/bonds-mcp/internal/logger"
)

// Store is what the daemon serves.
type Store interface {
	fetch.Fetcher
	Put(date, id string, data json.RawMessage) error
	Delete(date, id string) error
}

// Serve accepts connections on l until ctx is canceled or l is closed.
func Serve(ctx context.Context, l net.Listener, store Store) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			logger.Warnf("accept: %v", err)
			continue
		}
		go HandleConn(ctx, conn, store)
	}
}

// HandleConn answers requests on conn until the peer hangs up.
func HandleConn(ctx context.Context, conn net.Conn, store Store) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(handle(ctx, req, store)); err != nil {
			return
		}
	}
}

func handle(ctx context.Context, req Request, store Store) Response {
	switch req.Op {
	case OpFetch:
		records, err := store.Fetch(ctx, req.Date, req.IDs)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, Records: records}
	case OpPut:
		if err := store.Put(req.Date, req.ID, req.Data); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	case OpDelete:
		if err := store.Delete(req.Date, req.ID); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}
