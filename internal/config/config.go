// Package config loads StreamGo's runtime configuration from environment
// variables, with defaults suitable for running everything on one machine.
package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

// Config holds all configuration for the StreamGo core.
type Config struct {
	// Facade HTTP surface
	BindAddr string // env: BIND_ADDR, default: "127.0.0.1"
	Port     int    // env: PORT, default: 8080

	// Streaming proxy
	StreamProxyBindAddr string // env: STREAM_PROXY_BIND_ADDR, default: "127.0.0.1"
	StreamProxyPort     int    // env: STREAM_PROXY_PORT, default: 8787

	// Storage
	DataDir string // env: DATA_DIR, default: "./data" -- holds streamgo.db and torrent downloads

	// Torrent session
	TorrentListenPortLow  int // env: TORRENT_PORT_LOW, default: 6881
	TorrentListenPortHigh int // env: TORRENT_PORT_HIGH, default: 6890

	// Cache TTLs, in seconds
	CacheTTLCatalogSec  int // env: CACHE_TTL_CATALOG_SEC, default: 3600
	CacheTTLStreamSec   int // env: CACHE_TTL_STREAM_SEC, default: 300
	CacheTTLManifestSec int // env: CACHE_TTL_MANIFEST_SEC, default: 604800
	CacheTTLMetadataSec int // env: CACHE_TTL_METADATA_SEC, default: 86400

	// Aggregator
	AggregatorTimeoutSec int // env: AGGREGATOR_TIMEOUT_SEC, default: 3
}

// Load creates a new Config with defaults and overrides from environment
// variables.
func Load() *Config {
	c := &Config{
		BindAddr:              "127.0.0.1",
		Port:                  8080,
		StreamProxyBindAddr:   "127.0.0.1",
		StreamProxyPort:       8787,
		DataDir:               "./data",
		TorrentListenPortLow:  6881,
		TorrentListenPortHigh: 6890,
		CacheTTLCatalogSec:    3600,
		CacheTTLStreamSec:     300,
		CacheTTLManifestSec:   604800,
		CacheTTLMetadataSec:   86400,
		AggregatorTimeoutSec:  3,
	}

	if v := os.Getenv("BIND_ADDR"); v != "" {
		c.BindAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("STREAM_PROXY_BIND_ADDR"); v != "" {
		c.StreamProxyBindAddr = v
	}
	if v := os.Getenv("STREAM_PROXY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StreamProxyPort = n
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TORRENT_PORT_LOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TorrentListenPortLow = n
		}
	}
	if v := os.Getenv("TORRENT_PORT_HIGH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TorrentListenPortHigh = n
		}
	}
	if v := os.Getenv("CACHE_TTL_CATALOG_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLCatalogSec = n
		}
	}
	if v := os.Getenv("CACHE_TTL_STREAM_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLStreamSec = n
		}
	}
	if v := os.Getenv("CACHE_TTL_MANIFEST_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLManifestSec = n
		}
	}
	if v := os.Getenv("CACHE_TTL_METADATA_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLMetadataSec = n
		}
	}
	if v := os.Getenv("AGGREGATOR_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AggregatorTimeoutSec = n
		}
	}

	return c
}

// DBPath returns the path to the relational store file, streamgo.db directly
// inside DataDir.
func (c *Config) DBPath() string {
	return c.DataDir + "/streamgo.db"
}

// TorrentDataDir returns the directory torrent sessions download into.
func (c *Config) TorrentDataDir() string {
	return c.DataDir + "/torrents"
}

// LogSummary logs key configuration values at startup.
func (c *Config) LogSummary(log *zap.SugaredLogger) {
	log.Infow("configuration",
		"facadeAddr", c.BindAddr, "facadePort", c.Port,
		"streamProxyAddr", c.StreamProxyBindAddr, "streamProxyPort", c.StreamProxyPort,
		"dataDir", c.DataDir,
		"torrentPorts", []int{c.TorrentListenPortLow, c.TorrentListenPortHigh},
		"cacheTTLCatalogSec", c.CacheTTLCatalogSec,
		"cacheTTLStreamSec", c.CacheTTLStreamSec,
		"cacheTTLManifestSec", c.CacheTTLManifestSec,
		"cacheTTLMetadataSec", c.CacheTTLMetadataSec,
	)
}
