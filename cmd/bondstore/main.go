package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leonardcser/bonds-mcp/internal/config"
	"github.com/leonardcser/bonds-mcp/internal/logger"
	"github.com/leonardcser/bonds-mcp/internal/upstream"
)

const usage = `usage:
  bondstore                          serve the bond store on its Unix socket
  bondstore import <file.json|->     load {"date","isin","data"} records into a running store
  bondstore put <date> <isin> <json> store one record
  bondstore delete <date> <isin>     remove one record`

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := logger.Setup(cfg.Log.Path, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Close()

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "serve" {
		serve(cfg)
		return
	}
	if err := runClient(cfg.Upstream.Socket, args); err != nil {
		fmt.Fprintln(os.Stderr, "bondstore:", err)
		logger.Errorf("%s: %v", args[0], err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) {
	sock := cfg.Upstream.Socket
	db := cfg.Upstream.DBPath

	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)

	l, err := net.Listen("unix", sock)
	if err != nil {
		logger.Errorf("listen %s: %v", sock, err)
		panic(err)
	}
	defer l.Close()
	_ = os.Chmod(sock, 0o600)

	store, err := upstream.OpenBolt(db, upstream.BoltOptions{})
	if err != nil {
		logger.Errorf("open %s: %v", db, err)
		panic(err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Bond store serving %s on %s", db, sock)
	if err := upstream.Serve(ctx, l, store); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("serve: %v", err)
	}
	logger.Infof("Bond store stopped")
}

// runClient sends writes to a running daemon; the daemon holds the bbolt lock.
func runClient(sock string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	c := upstream.NewSocketClient(sock)

	switch args[0] {
	case "import":
		if len(args) != 2 {
			return errors.New(usage)
		}
		var r io.Reader = os.Stdin
		if args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		start := time.Now()
		n, err := upstream.Import(ctx, c, r)
		logger.Infof("Imported %d records from %s in %s", n, args[1], time.Since(start))
		fmt.Printf("imported %d records\n", n)
		return err
	case "put":
		if len(args) != 4 {
			return errors.New(usage)
		}
		data := json.RawMessage(args[3])
		if !json.Valid(data) {
			return upstream.ErrInvalidData
		}
		return c.Put(ctx, args[1], args[2], data)
	case "delete":
		if len(args) != 3 {
			return errors.New(usage)
		}
		return c.Delete(ctx, args[1], args[2])
	default:
		return errors.New(usage)
	}
}
