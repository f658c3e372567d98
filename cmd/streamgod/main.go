package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber"

	"github.com/streamgo/streamgo/internal/aggregator"
	"github.com/streamgo/streamgo/internal/cache"
	"github.com/streamgo/streamgo/internal/config"
	"github.com/streamgo/streamgo/internal/facade"
	"github.com/streamgo/streamgo/internal/facadehttp"
	"github.com/streamgo/streamgo/internal/logging"
	"github.com/streamgo/streamgo/internal/storage"
	"github.com/streamgo/streamgo/internal/streamproxy"
	"github.com/streamgo/streamgo/internal/torrentsession"
)

func main() {
	// 1. Load configuration from environment variables with sensible defaults.
	cfg := config.Load()
	log := logging.New(os.Getenv("DEBUG") != "")
	defer log.Sync()
	cfg.LogSummary(log)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalw("failed to create data dir", "dir", cfg.DataDir, "error", err)
	}

	// 2. Open the relational store (library, playlists, addons, cache tables).
	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		log.Fatalw("failed to open storage", "path", cfg.DBPath(), "error", err)
	}
	defer store.Close()

	// 3. Start the two-namespace TTL cache sweep loop over the same handle.
	respCache := cache.New(store.DB())
	respCache.Start()
	defer respCache.Stop()

	// 4. Open the embedded torrent session.
	session, err := torrentsession.Open(cfg.TorrentDataDir())
	if err != nil {
		log.Fatalw("failed to open torrent session", "dataDir", cfg.TorrentDataDir(), "error", err)
	}
	defer session.Close()

	// 5. Build the content aggregator: caches raw addon responses in
	// respCache and persists per-addon health to store after every call.
	agg := aggregator.New(respCache, store,
		time.Duration(cfg.CacheTTLCatalogSec)*time.Second,
		time.Duration(cfg.CacheTTLStreamSec)*time.Second,
	)

	// 6. Build and start the streaming proxy on its own loopback port.
	streamBaseURL := fmt.Sprintf("http://%s:%d", cfg.StreamProxyBindAddr, cfg.StreamProxyPort)
	proxy := streamproxy.New(session, streamBaseURL)
	proxyApp := fiber.New()
	proxy.RegisterRoutes(proxyApp)

	proxyAddr := fmt.Sprintf("%s:%d", cfg.StreamProxyBindAddr, cfg.StreamProxyPort)
	go func() {
		log.Infow("streaming proxy listening", "addr", proxyAddr)
		proxyApp.Listen(proxyAddr)
	}()

	// 7. Build the command facade around the shared store and services.
	f := facade.New(store, respCache, agg, session, proxy)

	// 8. Build and start the facade's JSON-over-HTTP surface.
	handlers := facadehttp.NewHandlers(f)
	app := fiber.New()
	facadehttp.RegisterRoutes(app, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	log.Infow("facade HTTP surface listening", "addr", addr)
	app.Listen(addr)
}
