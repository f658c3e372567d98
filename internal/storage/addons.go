package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streamgo/streamgo/internal/models"
)

// UpsertAddon inserts or replaces an addon registration.
func (s *Store) UpsertAddon(a models.Addon) error {
	manifestJSON, err := json.Marshal(a.Manifest)
	if err != nil {
		return fmt.Errorf("storage: marshal addon manifest: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO addons (id, name, version, description, author, url, enabled, category,
			priority, installed_at, manifest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, version=excluded.version, description=excluded.description,
			author=excluded.author, url=excluded.url, enabled=excluded.enabled,
			category=excluded.category, priority=excluded.priority, manifest=excluded.manifest
	`, a.ID, a.Name, a.Version, a.Description, a.Author, a.URL, boolToInt(a.Enabled),
		string(a.Category), a.Priority, a.InstalledAt.UTC().Format(time.RFC3339), string(manifestJSON))
	if err != nil {
		return fmt.Errorf("storage: upsert addon: %w", err)
	}
	return nil
}

// DeleteAddon removes an addon registration. Cached responses and health
// records for the addon are left in place; the cache sweep and a future
// ClearAddon call handle that separately.
func (s *Store) DeleteAddon(id string) error {
	res, err := s.db.Exec(`DELETE FROM addons WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete addon: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAddon fetches a single addon by id.
func (s *Store) GetAddon(id string) (*models.Addon, error) {
	row := s.db.QueryRow(`SELECT id, name, version, description, author, url, enabled, category,
		priority, installed_at, manifest FROM addons WHERE id=?`, id)
	a, err := scanAddonRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get addon: %w", err)
	}
	return a, nil
}

// ListAddons returns every registered addon, ordered by priority descending
// then enabled-first (spec §4.4's priority-ordered source list).
func (s *Store) ListAddons() ([]models.Addon, error) {
	rows, err := s.db.Query(`SELECT id, name, version, description, author, url, enabled, category,
		priority, installed_at, manifest FROM addons ORDER BY priority DESC, enabled DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list addons: %w", err)
	}
	defer rows.Close()

	var out []models.Addon
	for rows.Next() {
		a, err := scanAddonRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListEnabledAddons returns only enabled addons, priority descending. This is
// the source list the aggregator (C4) fans out against.
func (s *Store) ListEnabledAddons() ([]models.Addon, error) {
	rows, err := s.db.Query(`SELECT id, name, version, description, author, url, enabled, category,
		priority, installed_at, manifest FROM addons WHERE enabled = 1 ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list enabled addons: %w", err)
	}
	defer rows.Close()

	var out []models.Addon
	for rows.Next() {
		a, err := scanAddonRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetAddonEnabled toggles an addon's enabled state.
func (s *Store) SetAddonEnabled(id string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE addons SET enabled=? WHERE id=?`, boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("storage: set addon enabled: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAddonPriority changes an addon's sort priority.
func (s *Store) SetAddonPriority(id string, priority int) error {
	res, err := s.db.Exec(`UPDATE addons SET priority=? WHERE id=?`, priority, id)
	if err != nil {
		return fmt.Errorf("storage: set addon priority: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAddonRow(row *sql.Row) (*models.Addon, error) {
	var a models.Addon
	var enabled int
	var installedAt, manifestJSON string
	if err := row.Scan(&a.ID, &a.Name, &a.Version, &a.Description, &a.Author, &a.URL, &enabled,
		&a.Category, &a.Priority, &installedAt, &manifestJSON); err != nil {
		return nil, err
	}
	return finishAddonScan(&a, enabled, installedAt, manifestJSON)
}

func scanAddonRows(rows *sql.Rows) (*models.Addon, error) {
	var a models.Addon
	var enabled int
	var installedAt, manifestJSON string
	if err := rows.Scan(&a.ID, &a.Name, &a.Version, &a.Description, &a.Author, &a.URL, &enabled,
		&a.Category, &a.Priority, &installedAt, &manifestJSON); err != nil {
		return nil, fmt.Errorf("storage: scan addon: %w", err)
	}
	return finishAddonScan(&a, enabled, installedAt, manifestJSON)
}

func finishAddonScan(a *models.Addon, enabled int, installedAt, manifestJSON string) (*models.Addon, error) {
	a.Enabled = enabled != 0
	if t, err := time.Parse(time.RFC3339, installedAt); err == nil {
		a.InstalledAt = t
	}
	if manifestJSON != "" {
		if err := json.Unmarshal([]byte(manifestJSON), &a.Manifest); err != nil {
			return nil, fmt.Errorf("storage: unmarshal addon manifest: %w", err)
		}
	}
	return a, nil
}

// SetAddonConfig stores a single key/value configuration entry for an addon.
func (s *Store) SetAddonConfig(addonID, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO addon_config (addon_id, config_key, config_value) VALUES (?, ?, ?)
		ON CONFLICT(addon_id, config_key) DO UPDATE SET config_value=excluded.config_value
	`, addonID, key, value)
	if err != nil {
		return fmt.Errorf("storage: set addon config: %w", err)
	}
	return nil
}

// GetAddonConfig returns all configuration entries for an addon as a map.
func (s *Store) GetAddonConfig(addonID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT config_key, config_value FROM addon_config WHERE addon_id=?`, addonID)
	if err != nil {
		return nil, fmt.Errorf("storage: get addon config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// RecordAddonHealth appends a health observation and rolls it into the
// addon's summary row (spec's supplemented "Addon health persistence"
// feature, grounded on migrations.rs v002).
func (s *Store) RecordAddonHealth(rec models.AddonHealthRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: record addon health: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO addon_health (addon_id, timestamp, response_time_ms, success, error, item_count, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.AddonID, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.ResponseTimeMs,
		boolToInt(rec.Success), rec.Error, rec.ItemCount, rec.Priority)
	if err != nil {
		return fmt.Errorf("storage: record addon health: %w", err)
	}

	var summary models.AddonHealthSummary
	var lastSuccess, lastFailure sql.NullString
	err = tx.QueryRow(`SELECT total_calls, success_calls, avg_response_time_ms, last_success_at, last_failure_at
		FROM addon_health_summary WHERE addon_id=?`, rec.AddonID).
		Scan(&summary.TotalCalls, &summary.SuccessCalls, &summary.AvgResponseTimeMs, &lastSuccess, &lastFailure)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("storage: record addon health: %w", err)
	}

	newTotal := summary.TotalCalls + 1
	newSuccess := summary.SuccessCalls
	if rec.Success {
		newSuccess++
	}
	newAvg := (summary.AvgResponseTimeMs*float64(summary.TotalCalls) + float64(rec.ResponseTimeMs)) / float64(newTotal)

	lastSuccessAt := lastSuccess
	lastFailureAt := lastFailure
	nowStr := rec.Timestamp.UTC().Format(time.RFC3339)
	if rec.Success {
		lastSuccessAt = sql.NullString{String: nowStr, Valid: true}
	} else {
		lastFailureAt = sql.NullString{String: nowStr, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO addon_health_summary (addon_id, total_calls, success_calls, avg_response_time_ms,
			last_success_at, last_failure_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(addon_id) DO UPDATE SET total_calls=excluded.total_calls,
			success_calls=excluded.success_calls, avg_response_time_ms=excluded.avg_response_time_ms,
			last_success_at=excluded.last_success_at, last_failure_at=excluded.last_failure_at
	`, rec.AddonID, newTotal, newSuccess, newAvg, lastSuccessAt, lastFailureAt)
	if err != nil {
		return fmt.Errorf("storage: record addon health: %w", err)
	}

	return tx.Commit()
}

// GetAddonHealthSummary reads the rolling health summary for an addon.
func (s *Store) GetAddonHealthSummary(addonID string) (*models.AddonHealthSummary, error) {
	var summary models.AddonHealthSummary
	summary.AddonID = addonID
	var lastSuccess, lastFailure sql.NullString

	err := s.db.QueryRow(`SELECT total_calls, success_calls, avg_response_time_ms, last_success_at, last_failure_at
		FROM addon_health_summary WHERE addon_id=?`, addonID).
		Scan(&summary.TotalCalls, &summary.SuccessCalls, &summary.AvgResponseTimeMs, &lastSuccess, &lastFailure)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get addon health summary: %w", err)
	}

	if lastSuccess.Valid {
		if t, err := time.Parse(time.RFC3339, lastSuccess.String); err == nil {
			summary.LastSuccessAt = &t
		}
	}
	if lastFailure.Valid {
		if t, err := time.Parse(time.RFC3339, lastFailure.String); err == nil {
			summary.LastFailureAt = &t
		}
	}
	return &summary, nil
}
