package storage

import (
	"database/sql"
	"strconv"
)

// targetSchemaVersion is the schema version this build expects. It is bumped
// whenever a new migration is appended.
const targetSchemaVersion = 7

// migration is one versioned forward step in the schema ladder. The ladder
// is a closed, ordered set (spec §9 "Polymorphism": tagged variants over
// {version, forward-step, description}), not open inheritance.
type migration struct {
	version     int
	description string
	up          func(tx *sql.Tx) error
}

// migrations is the full, ordered ladder. Each step must be idempotent at
// the DDL level (IF NOT EXISTS guards) so a crashed run can resume.
var migrations = []migration{
	{1, "initial schema", migration001InitialSchema},
	{2, "addon health tables", migration002AddonHealth},
	{3, "addon installed_at and priority columns", migration003AddonColumns},
	{4, "purge invalid addon urls", migration004ValidateAddonURLs},
	{5, "episodes table", migration005Episodes},
	{6, "addon config table", migration006AddonConfig},
	{7, "media progress_updated_at column", migration007ProgressUpdatedAt},
}

func migration001InitialSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS media_items (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			media_type TEXT NOT NULL,
			year INTEGER,
			genres TEXT,
			description TEXT,
			poster_url TEXT,
			backdrop_url TEXT,
			rating REAL,
			duration_min INTEGER,
			added_at TEXT,
			watched INTEGER NOT NULL DEFAULT 0,
			progress_sec INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT,
			preferences TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS list_memberships (
			user_id TEXT NOT NULL,
			media_id TEXT NOT NULL,
			list_kind TEXT NOT NULL,
			added_at TEXT NOT NULL,
			PRIMARY KEY (user_id, media_id, list_kind)
		)`,
		`CREATE TABLE IF NOT EXISTS addons (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			description TEXT,
			author TEXT,
			url TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			category TEXT NOT NULL,
			manifest TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			owner_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			media_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (playlist_id, media_id)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS addon_response_cache (
			key TEXT NOT NULL,
			addon_id TEXT NOT NULL,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (key, addon_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return createIndexes(tx)
}

func createIndexes(tx *sql.Tx) error {
	idx := []string{
		`CREATE INDEX IF NOT EXISTS idx_media_type ON media_items(media_type)`,
		`CREATE INDEX IF NOT EXISTS idx_media_watched ON media_items(watched)`,
		`CREATE INDEX IF NOT EXISTS idx_media_rating ON media_items(rating)`,
		`CREATE INDEX IF NOT EXISTS idx_media_title_nocase ON media_items(title COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS idx_list_user_kind ON list_memberships(user_id, list_kind)`,
		`CREATE INDEX IF NOT EXISTS idx_addons_enabled ON addons(enabled)`,
		`CREATE INDEX IF NOT EXISTS idx_playlist_items_pos ON playlist_items(playlist_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_expires ON metadata_cache(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_addon_cache_expires ON addon_response_cache(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_addon_cache_addon ON addon_response_cache(addon_id)`,
	}
	for _, s := range idx {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddonHealth(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS addon_health (
			addon_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			response_time_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			error TEXT,
			item_count INTEGER NOT NULL,
			priority INTEGER NOT NULL,
			PRIMARY KEY (addon_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS addon_health_summary (
			addon_id TEXT PRIMARY KEY,
			total_calls INTEGER NOT NULL DEFAULT 0,
			success_calls INTEGER NOT NULL DEFAULT 0,
			avg_response_time_ms REAL NOT NULL DEFAULT 0,
			last_success_at INTEGER,
			last_failure_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_addon_health_addon ON addon_health(addon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_addon_health_ts ON addon_health(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// migration003AddonColumns adds installed_at and priority to addons,
// introspecting the existing columns first so a legacy table (already
// upgraded by a prior partial run) is left alone -- mirrors the original
// migration's PRAGMA table_info-based idempotence.
func migration003AddonColumns(tx *sql.Tx) error {
	existing, err := tableColumns(tx, "addons")
	if err != nil {
		return err
	}

	if !existing["installed_at"] {
		if _, err := tx.Exec(`ALTER TABLE addons ADD COLUMN installed_at TEXT`); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE addons SET installed_at = datetime('now') WHERE installed_at IS NULL`); err != nil {
			return err
		}
	}
	if !existing["priority"] {
		if _, err := tx.Exec(`ALTER TABLE addons ADD COLUMN priority INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_addons_priority ON addons(priority DESC, enabled)`); err != nil {
		return err
	}
	return nil
}

func tableColumns(tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dfltValue interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// migration004ValidateAddonURLs purges addons with no usable URL, matching
// spec §3.5's invariant: "enabled addons with missing/empty/built-in/
// non-HTTP URLs are removed on schema migration v4."
func migration004ValidateAddonURLs(tx *sql.Tx) error {
	_, err := tx.Exec(`DELETE FROM addons WHERE url IS NULL OR url = '' OR url = 'built-in' OR url NOT LIKE 'http%'`)
	return err
}

func migration005Episodes(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
			season INTEGER NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			air_date TEXT,
			watched INTEGER NOT NULL DEFAULT 0,
			progress_sec INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_series ON episodes(series_id)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_series_season_number ON episodes(series_id, season, number)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func migration006AddonConfig(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS addon_config (
			addon_id TEXT NOT NULL REFERENCES addons(id) ON DELETE CASCADE,
			config_key TEXT NOT NULL,
			config_value TEXT NOT NULL,
			PRIMARY KEY (addon_id, config_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_addon_config_addon ON addon_config(addon_id)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// migration007ProgressUpdatedAt adds the timestamp continue-watching orders
// by (SPEC_FULL.md "Continue-watching ordering" -- most-recently-updated
// progress first, not insertion time).
func migration007ProgressUpdatedAt(tx *sql.Tx) error {
	existing, err := tableColumns(tx, "media_items")
	if err != nil {
		return err
	}

	if !existing["progress_updated_at"] {
		if _, err := tx.Exec(`ALTER TABLE media_items ADD COLUMN progress_updated_at TEXT`); err != nil {
			return err
		}
	}
	return nil
}

// runMigrations applies the schema ladder to db, following spec §4.3's
// open-time contract exactly: read user_version, no-op if current, fail with
// ErrSchemaTooNew if ahead of target, else apply each pending migration in
// its own transaction and bump user_version before committing.
func runMigrations(db *sql.DB) error {
	current, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if current == targetSchemaVersion {
		return nil
	}
	if current > targetSchemaVersion {
		return ErrSchemaTooNew
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if err := m.up(tx); err != nil {
			tx.Rollback()
			return err
		}

		if err := setUserVersionTx(tx, m.version); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// setUserVersionTx sets user_version within an open transaction. PRAGMA
// statements are not parameterizable, so the version is formatted directly
// -- safe here because it is always one of this package's own constants.
func setUserVersionTx(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`PRAGMA user_version = ` + strconv.Itoa(version))
	return err
}
