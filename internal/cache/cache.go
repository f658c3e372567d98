// Package cache is the two-namespace TTL response cache (spec §4.2): one
// table for resolved metadata lookups, one for raw per-addon HTTP responses.
// It shares the storage engine's *sql.DB handle rather than opening a second
// connection to the same file.
package cache

import (
	"database/sql"
	"fmt"
	"time"
)

// Namespace selects which of the two cache tables an operation targets.
type Namespace string

const (
	// NamespaceMetadata is the resolved-metadata cache (catalog/meta lookups
	// keyed without an addon dimension).
	NamespaceMetadata Namespace = "metadata"
	// NamespaceAddonResponse is the raw per-addon response cache, keyed by
	// (key, addon_id) per spec §4.2's composite-unique requirement.
	NamespaceAddonResponse Namespace = "addon_response"
)

// NamespaceStats is a point-in-time snapshot of one namespace's occupancy.
type NamespaceStats struct {
	Total   int
	Valid   int
	Expired int
}

// Stats is a point-in-time snapshot of cache occupancy, per namespace.
type Stats struct {
	Metadata      NamespaceStats
	AddonResponse NamespaceStats
}

// Cache is the TTL response cache. Get/Set operate on raw bytes; callers
// marshal/unmarshal their own payloads, matching cache.rs's byte-blob
// storage rather than baking a schema into the cache layer.
type Cache struct {
	db     *sql.DB
	stopCh chan struct{}
}

// New wraps db. The caller (cmd/streamgod, via storage.Store.DB())
// owns the connection's lifetime; Cache never opens or closes it.
func New(db *sql.DB) *Cache {
	return &Cache{db: db, stopCh: make(chan struct{})}
}

// Get looks up key in ns. A miss (absent or expired) returns (nil, false,
// nil). A row whose value fails the caller's own deserialization is the
// caller's concern, not this layer's -- Get never silently treats a present,
// unexpired row as a miss.
func (c *Cache) Get(ns Namespace, key, addonID string) ([]byte, bool, error) {
	now := time.Now().Unix()

	var value []byte
	var expiresAt int64
	var err error
	switch ns {
	case NamespaceMetadata:
		err = c.db.QueryRow(`SELECT value, expires_at FROM metadata_cache WHERE key = ?`, key).
			Scan(&value, &expiresAt)
	case NamespaceAddonResponse:
		err = c.db.QueryRow(`SELECT value, expires_at FROM addon_response_cache WHERE key = ? AND addon_id = ?`,
			key, addonID).Scan(&value, &expiresAt)
	default:
		return nil, false, fmt.Errorf("cache: unknown namespace %q", ns)
	}

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	if expiresAt <= now {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key (and addonID, for the addon-response
// namespace) with the given time-to-live.
func (c *Cache) Set(ns Namespace, key, addonID string, value []byte, ttl time.Duration) error {
	now := time.Now().Unix()
	expiresAt := now + int64(ttl.Seconds())

	var err error
	switch ns {
	case NamespaceMetadata:
		_, err = c.db.Exec(`
			INSERT INTO metadata_cache (key, value, expires_at, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at,
				created_at=excluded.created_at
		`, key, value, expiresAt, now)
	case NamespaceAddonResponse:
		_, err = c.db.Exec(`
			INSERT INTO addon_response_cache (key, addon_id, value, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key, addon_id) DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at,
				created_at=excluded.created_at
		`, key, addonID, value, expiresAt, now)
	default:
		return fmt.Errorf("cache: unknown namespace %q", ns)
	}
	if err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// ClearAddon removes every addon-response entry belonging to addonID. Called
// when an addon is disabled or removed so stale responses from it can never
// resurface.
func (c *Cache) ClearAddon(addonID string) error {
	if _, err := c.db.Exec(`DELETE FROM addon_response_cache WHERE addon_id = ?`, addonID); err != nil {
		return fmt.Errorf("cache: clear addon: %w", err)
	}
	return nil
}

// Sweep deletes every expired row from both cache tables and returns the
// total rows removed.
func (c *Cache) Sweep() (int, error) {
	now := time.Now().Unix()

	res1, err := c.db.Exec(`DELETE FROM metadata_cache WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("cache: sweep metadata: %w", err)
	}
	n1, _ := res1.RowsAffected()

	res2, err := c.db.Exec(`DELETE FROM addon_response_cache WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("cache: sweep addon responses: %w", err)
	}
	n2, _ := res2.RowsAffected()

	return int(n1 + n2), nil
}

// Stats returns current occupancy of both namespaces, each broken down into
// total/valid/expired against the current time (spec §4.2, §8 I1/S1).
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	now := time.Now().Unix()

	var err error
	s.Metadata, err = c.namespaceStats(`metadata_cache`, now)
	if err != nil {
		return s, fmt.Errorf("cache: stats: %w", err)
	}
	s.AddonResponse, err = c.namespaceStats(`addon_response_cache`, now)
	if err != nil {
		return s, fmt.Errorf("cache: stats: %w", err)
	}
	return s, nil
}

func (c *Cache) namespaceStats(table string, now int64) (NamespaceStats, error) {
	var s NamespaceStats
	query := fmt.Sprintf(`SELECT COUNT(*), COUNT(CASE WHEN expires_at > ? THEN 1 END) FROM %s`, table)
	if err := c.db.QueryRow(query, now).Scan(&s.Total, &s.Valid); err != nil {
		return s, err
	}
	s.Expired = s.Total - s.Valid
	return s, nil
}

// Start launches the background sweep loop, running an immediate sweep and
// then one every minute until Stop is called. Mirrors the teacher cache
// manager's Start/loop/ticker shape, repurposed from LRU torrent eviction to
// TTL row sweeping.
func (c *Cache) Start() {
	go c.loop()
}

// Stop signals the background sweep loop to exit.
func (c *Cache) Stop() {
	close(c.stopCh)
}

func (c *Cache) loop() {
	c.sweepAndLog()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepAndLog()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) sweepAndLog() {
	// A failed sweep leaves expired rows in place; Get already treats those as a miss.
	_, _ = c.Sweep()
}
