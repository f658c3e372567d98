package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/streamgo/streamgo/internal/models"
)

// CreatePlaylist inserts a new playlist and returns it.
func (s *Store) CreatePlaylist(id, name string, description *string, ownerID string) (*models.Playlist, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO playlists (id, name, description, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, name, description, ownerID, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("storage: create playlist: %w", err)
	}

	return &models.Playlist{
		ID: id, Name: name, Description: description, OwnerID: ownerID,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetPlaylists returns every playlist, with item counts.
func (s *Store) GetPlaylists() ([]models.Playlist, error) {
	rows, err := s.db.Query(`
		SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM playlist_items WHERE playlist_id = p.id) AS item_count
		FROM playlists p
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: get playlists: %w", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// GetPlaylist returns a single playlist by id.
func (s *Store) GetPlaylist(id string) (*models.Playlist, error) {
	row := s.db.QueryRow(`
		SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM playlist_items WHERE playlist_id = p.id) AS item_count
		FROM playlists p WHERE p.id = ?
	`, id)

	var pl models.Playlist
	var description sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&pl.ID, &pl.Name, &description, &pl.OwnerID, &createdAt, &updatedAt, &pl.ItemCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get playlist: %w", err)
	}
	if description.Valid {
		pl.Description = &description.String
	}
	pl.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	pl.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &pl, nil
}

func scanPlaylist(rows *sql.Rows) (models.Playlist, error) {
	var pl models.Playlist
	var description sql.NullString
	var createdAt, updatedAt string
	if err := rows.Scan(&pl.ID, &pl.Name, &description, &pl.OwnerID, &createdAt, &updatedAt, &pl.ItemCount); err != nil {
		return pl, fmt.Errorf("storage: scan playlist: %w", err)
	}
	if description.Valid {
		pl.Description = &description.String
	}
	pl.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	pl.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return pl, nil
}

// UpdatePlaylist renames/redescribes a playlist.
func (s *Store) UpdatePlaylist(id, name string, description *string) error {
	res, err := s.db.Exec(`UPDATE playlists SET name=?, description=?, updated_at=? WHERE id=?`,
		name, description, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("storage: update playlist: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlaylist removes a playlist; playlist_items cascade via FK.
func (s *Store) DeletePlaylist(id string) error {
	res, err := s.db.Exec(`DELETE FROM playlists WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete playlist: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToPlaylist appends a media item at the next free position.
func (s *Store) AddToPlaylist(playlistID, mediaID string) error {
	var maxPos sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(position) FROM playlist_items WHERE playlist_id=?`, playlistID).
		Scan(&maxPos); err != nil {
		return fmt.Errorf("storage: add to playlist: %w", err)
	}

	next := 1
	if maxPos.Valid {
		next = int(maxPos.Int64) + 1
	}

	_, err := s.db.Exec(`
		INSERT INTO playlist_items (playlist_id, media_id, position) VALUES (?, ?, ?)
		ON CONFLICT(playlist_id, media_id) DO NOTHING
	`, playlistID, mediaID, next)
	if err != nil {
		return fmt.Errorf("storage: add to playlist: %w", err)
	}
	return nil
}

// RemoveFromPlaylist removes one item and compacts positions so they remain
// a dense 1..n sequence.
func (s *Store) RemoveFromPlaylist(playlistID, mediaID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: remove from playlist: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id=? AND media_id=?`, playlistID, mediaID); err != nil {
		return fmt.Errorf("storage: remove from playlist: %w", err)
	}

	if err := compactPositions(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPlaylistItems returns media ids in a playlist, ordered by position.
func (s *Store) GetPlaylistItems(playlistID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT media_id FROM playlist_items WHERE playlist_id=? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("storage: get playlist items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReorderPlaylistItems implements spec §4.3.1 and §9's resolved open
// question: "rewrite positions for mentioned items, preserve relative order
// for others." mediaIDs becomes positions 1..k; any existing items not
// named in mediaIDs keep their prior relative order, appended after position
// k. The whole operation runs atomically.
func (s *Store) ReorderPlaylistItems(playlistID string, mediaIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: reorder playlist: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT media_id FROM playlist_items WHERE playlist_id=? ORDER BY position`, playlistID)
	if err != nil {
		return fmt.Errorf("storage: reorder playlist: %w", err)
	}
	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	mentioned := make(map[string]bool, len(mediaIDs))
	for _, id := range mediaIDs {
		mentioned[id] = true
	}

	final := make([]string, 0, len(existing))
	final = append(final, mediaIDs...)
	for _, id := range existing {
		if !mentioned[id] {
			final = append(final, id)
		}
	}

	if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id=?`, playlistID); err != nil {
		return fmt.Errorf("storage: reorder playlist: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_items (playlist_id, media_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: reorder playlist: %w", err)
	}
	defer stmt.Close()

	for i, id := range final {
		if _, err := stmt.Exec(playlistID, id, i+1); err != nil {
			return fmt.Errorf("storage: reorder playlist: %w", err)
		}
	}

	return tx.Commit()
}

// compactPositions renumbers a playlist's items to a dense 1..n sequence,
// preserving existing relative order.
func compactPositions(tx *sql.Tx, playlistID string) error {
	rows, err := tx.Query(`SELECT media_id FROM playlist_items WHERE playlist_id=? ORDER BY position`, playlistID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`UPDATE playlist_items SET position=? WHERE playlist_id=? AND media_id=?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.Exec(i+1, playlistID, id); err != nil {
			return err
		}
	}
	return nil
}
