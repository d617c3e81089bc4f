// go_douyin is a Douyin web API proxy with account rotation.
//
// Serves the proxy routes and the account admin API over HTTP, and the same
// operations as MCP tools: account_list, account_add, account_update,
// account_delete, account_test, douyin_fetch, douyin_route.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_douyin/internal/account"
	"github.com/anatolykoptev/go_douyin/internal/douyinserver"
	"github.com/anatolykoptev/go_douyin/internal/engine"
	"github.com/anatolykoptev/go_douyin/internal/gateway"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version  = "dev"
	mcpPort  = env.Str("MCP_PORT", "8892")
	httpPort = env.Str("HTTP_PORT", "3010")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx)
	if err != nil {
		slog.Error("account store init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := account.Shutdown(); err != nil {
			slog.Warn("account store close failed", slog.Any("error", err))
		}
	}()

	rt := initEngine()
	defer rt.Close()

	gw := gateway.New(store, rt.Options(), rt.Cache)

	if envBool("ACCOUNT_WATCH", true) {
		go func() {
			err := account.Watch(ctx, store)
			if err != nil && !errors.Is(err, account.ErrNotFileBacked) {
				slog.Warn("account watcher stopped", slog.Any("error", err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
	}
	go func() {
		slog.Info("http api listening", slog.String("port", httpPort), slog.Int("routes", len(gateway.Routes)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http api failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting go_douyin", slog.String("port", mcpPort))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_douyin",
		Version: version,
	}, nil)

	douyinserver.RegisterTools(server, gw)
	slog.Info("tools registered", slog.Int("count", douyinserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_douyin",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

// initStore opens the snapshot sink named by ACCOUNT_STORE, seals it when an
// age identity is configured, and loads the process-wide store.
func initStore(ctx context.Context) (*account.Store, error) {
	dsn := env.Str("ACCOUNT_STORE", account.DefaultPath)
	sink, err := account.OpenSink(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if path := env.Str("ACCOUNT_AGE_IDENTITY", ""); path != "" {
		id, err := account.LoadIdentity(path)
		if err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("age identity: %w", err)
		}
		sink = account.NewSealedSink(sink, id)
		slog.Info("account snapshots sealed", slog.String("recipient", id.Recipient().String()))
	}

	store, err := account.Initialize(ctx, sink)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	slog.Info("account store ready",
		slog.String("sink", fmt.Sprintf("%T", sink)),
		slog.Int("accounts", store.Len()),
	)
	return store, nil
}

func initEngine() *engine.Runtime {
	return engine.Init(engine.Config{
		UserAgent:            env.Str("USER_AGENT", engine.DefaultUserAgent),
		SignerURL:            env.Str("SIGNER_URL", ""),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 30*time.Second),
		ConnectTimeout:       env.Duration("CONNECT_TIMEOUT", 10*time.Second),
		MaxConns:             env.Int("MAX_CONNS", 100),
		MaxIdleConns:         env.Int("MAX_IDLE_CONNS", 20),
		RetryBaseDelay:       env.Duration("RETRY_BASE_DELAY", time.Second),
		UpstreamRPS:          env.Float("UPSTREAM_RPS", 0),
		UpstreamBurst:        env.Int("UPSTREAM_BURST", 1),
		StealthTransport:     envBool("STEALTH_TRANSPORT", false),
		WebshareAPIKey:       env.Str("WEBSHARE_API_KEY", ""),
		RedisURL:             env.Str("REDIS_URL", ""),
		CacheTTL:             env.Duration("CACHE_TTL", 5*time.Minute),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
	})
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
