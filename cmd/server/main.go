package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardcser/bonds-mcp/internal/cache"
	"github.com/leonardcser/bonds-mcp/internal/config"
	"github.com/leonardcser/bonds-mcp/internal/fetch"
	"github.com/leonardcser/bonds-mcp/internal/logger"
	"github.com/leonardcser/bonds-mcp/internal/metrics"
	"github.com/leonardcser/bonds-mcp/internal/tools"
	"github.com/leonardcser/bonds-mcp/internal/upstream"
)

const daemonName = "bondstore"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := logger.Setup(cfg.Log.Path, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting Bonds MCP server (cache=%s ttl=%s limit=%d upstream=%s)",
		cfg.Cache.Kind, cfg.Cache.TTL, cfg.Cache.Limit, cfg.Upstream.Mode)

	var rec *metrics.Recorder
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		rec = metrics.New(reg)
		go serveMetrics(cfg.Metrics.Addr, reg)
	}

	handle, err := cache.New[string, fetch.Slot](cache.Config[string]{
		Kind:    cfg.CacheKind(),
		TTL:     cfg.Cache.TTL,
		Limit:   cfg.Cache.Limit,
		OnEvict: rec.Evicted,
	})
	if err != nil {
		logger.Errorf("Failed to build cache: %v", err)
		panic(err)
	}

	src, closeSrc, err := openUpstream(cfg)
	if err != nil {
		logger.Errorf("Failed to open upstream: %v", err)
		panic(err)
	}
	defer closeSrc()

	dedup, err := fetch.New(src, handle,
		fetch.WithObserver(logEvent),
		fetch.WithSingleFlight(*cfg.Cache.SingleFlight),
		fetch.WithMetrics(rec),
		fetch.WithFetchTimeout(cfg.Upstream.Timeout),
	)
	if err != nil {
		panic(err)
	}

	s := server.NewMCPServer(
		"Bonds MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")

	toolFetch := mcp.NewTool("bonds-fetch",
		mcp.WithDescription(multiline(
			"Returns bond records for a list of ISINs as of a given date",
			"\nFunctionality:",
			"- Takes a date and a list of ISINs",
			"- Serves ISINs already loaded for that date from memory",
			"- Fetches all remaining ISINs in a single upstream call",
			"- Lists the ISINs the upstream does not know under \"Not found\"",
			"\nUsage notes:",
			"- The date must be formatted as YYYYMMDD",
			"- Separate ISINs with commas or whitespace",
			"- Cached records expire after "+cfg.Cache.TTL.String(),
		)),
		mcp.WithString("date", mcp.Required(), mcp.Description("Valuation date, YYYYMMDD")),
		mcp.WithString("isins", mcp.Required(), mcp.Description("Comma separated ISINs")),
	)
	s.AddTool(toolFetch, tools.BondsFetchHandler(dedup))
	logger.Infof("Registered bonds-fetch tool")

	toolCache := mcp.NewTool("bonds-cache",
		mcp.WithDescription(multiline(
			"Reports what the bond cache currently holds",
			"\nFunctionality:",
			"- Returns the number of cached entries",
			"- For an LRU cache, also returns its capacity and keys from least to most recently used",
			"- Keys are the date followed by the ISIN",
		)),
	)
	s.AddTool(toolCache, tools.BondsCacheHandler(handle))
	logger.Infof("Registered bonds-cache tool")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func logEvent(ev fetch.Event) {
	if errors.Is(ev.Err, fetch.ErrNotFound) {
		logger.Warnf("%s %s: not found", ev.Date, ev.ID)
		return
	}
	logger.Infof("%s %s: loaded (%d bytes)", ev.Date, ev.ID, len(ev.Data))
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Infof("Serving metrics on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Errorf("metrics server: %v", err)
	}
}

func openUpstream(cfg *config.Config) (fetch.Fetcher, func(), error) {
	switch cfg.Upstream.Mode {
	case config.ModeHTTP:
		logger.Infof("Using HTTP upstream %s", cfg.Upstream.BaseURL)
		return upstream.NewHTTPSource(cfg.Upstream.BaseURL, cfg.Upstream.Timeout), func() {}, nil
	case config.ModeBolt:
		logger.Infof("Opening bond store %s", cfg.Upstream.DBPath)
		store, err := upstream.OpenBolt(cfg.Upstream.DBPath, upstream.BoltOptions{})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		client, err := connectStore(cfg.Upstream.Socket)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
}

// connectStore connects to the bond store daemon, starting it if needed.
func connectStore(sock string) (*upstream.SocketClient, error) {
	logger.Infof("Attempting to connect to bond store at %s", sock)
	err := probe(sock)
	if err == nil {
		logger.Infof("Successfully connected to bond store")
		return upstream.NewSocketClient(sock), nil
	}
	logger.Warnf("Failed to connect to bond store: %v, attempting to start daemon", err)
	if startErr := startDaemon(); startErr != nil {
		logger.Errorf("Failed to start bond store: %v", startErr)
	} else {
		logger.Infof("Bond store started successfully")
	}

	// wait for socket to appear
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err = probe(sock); err == nil {
			logger.Infof("Successfully connected to bond store")
			return upstream.NewSocketClient(sock), nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, err
}

func probe(sock string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", sock)
	if err != nil {
		return err
	}
	return conn.Close()
}

// startDaemon looks for the daemon next to this executable, then on PATH,
// then in the working directory.
func startDaemon() error {
	var candidates []string
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), daemonName))
	}
	if path, err := exec.LookPath(daemonName); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, "./"+daemonName)

	for _, bin := range candidates {
		if _, err := os.Stat(bin); err != nil {
			continue
		}
		cmd := exec.Command(bin)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return exec.ErrNotFound
}
