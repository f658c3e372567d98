package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamgo/streamgo/internal/models"
)

// AddToLibrary inserts or replaces a media item.
func (s *Store) AddToLibrary(item models.MediaItem) error {
	genres, err := json.Marshal(item.Genres)
	if err != nil {
		return fmt.Errorf("storage: marshal genres: %w", err)
	}

	var addedAt interface{}
	if item.AddedAt != nil {
		addedAt = item.AddedAt.UTC().Format(time.RFC3339)
	}

	_, err = s.db.Exec(`
		INSERT INTO media_items (id, title, media_type, year, genres, description, poster_url,
			backdrop_url, rating, duration_min, added_at, watched, progress_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, media_type=excluded.media_type, year=excluded.year,
			genres=excluded.genres, description=excluded.description, poster_url=excluded.poster_url,
			backdrop_url=excluded.backdrop_url, rating=excluded.rating, duration_min=excluded.duration_min,
			added_at=excluded.added_at, watched=excluded.watched, progress_sec=excluded.progress_sec
	`, item.ID, item.Title, string(item.Type), item.Year, string(genres), item.Description,
		item.PosterURL, item.BackdropURL, item.Rating, item.DurationMin, addedAt,
		boolToInt(item.Watched), item.ProgressSec)
	if err != nil {
		return fmt.Errorf("storage: add to library: %w", err)
	}
	return nil
}

// GetLibraryItems returns every media item in the library, unfiltered.
func (s *Store) GetLibraryItems() ([]models.MediaItem, error) {
	rows, err := s.db.Query(`SELECT id, title, media_type, year, genres, description, poster_url,
		backdrop_url, rating, duration_min, added_at, watched, progress_sec FROM media_items`)
	if err != nil {
		return nil, fmt.Errorf("storage: get library items: %w", err)
	}
	defer rows.Close()

	return scanMediaItems(rows)
}

// SearchLibraryAdvanced runs a filtered, sorted query over media_items.
func (s *Store) SearchLibraryAdvanced(f models.SearchFilters) ([]models.MediaItem, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if f.Text != nil && *f.Text != "" {
		where = append(where, "title LIKE ? COLLATE NOCASE")
		args = append(args, "%"+*f.Text+"%")
	}
	if f.Type != nil {
		where = append(where, "media_type = ?")
		args = append(args, string(*f.Type))
	}
	if f.Watched != nil {
		where = append(where, "watched = ?")
		args = append(args, boolToInt(*f.Watched))
	}
	if f.YearMin != nil {
		where = append(where, "year >= ?")
		args = append(args, *f.YearMin)
	}
	if f.YearMax != nil {
		where = append(where, "year <= ?")
		args = append(args, *f.YearMax)
	}
	if f.MinRating != nil {
		where = append(where, "rating >= ?")
		args = append(args, *f.MinRating)
	}
	if f.MaxDuration != nil {
		where = append(where, "duration_min <= ?")
		args = append(args, *f.MaxDuration)
	}

	order := "title ASC"
	switch f.Sort {
	case models.SortTitleDesc:
		order = "title DESC"
	case models.SortRatingDesc:
		order = "rating DESC"
	case models.SortDateAddedDesc:
		order = "added_at DESC"
	case models.SortYearDesc:
		order = "year DESC"
	}

	query := fmt.Sprintf(`SELECT id, title, media_type, year, genres, description, poster_url,
		backdrop_url, rating, duration_min, added_at, watched, progress_sec
		FROM media_items WHERE %s ORDER BY %s`, strings.Join(where, " AND "), order)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: search library: %w", err)
	}
	defer rows.Close()

	items, err := scanMediaItems(rows)
	if err != nil {
		return nil, err
	}

	// Genre-subset filtering happens in-process: genres are stored as a JSON
	// array and SQLite's LIKE can't cheaply express "is a subset of". An item
	// matches when its genres include every requested genre.
	if len(f.Genres) > 0 {
		items = filterByGenres(items, f.Genres)
	}
	return items, nil
}

func filterByGenres(items []models.MediaItem, want []string) []models.MediaItem {
	out := items[:0]
	for _, item := range items {
		have := make(map[string]bool, len(item.Genres))
		for _, g := range item.Genres {
			have[g] = true
		}
		matches := true
		for _, g := range want {
			if !have[g] {
				matches = false
				break
			}
		}
		if matches {
			out = append(out, item)
		}
	}
	return out
}

func scanMediaItems(rows *sql.Rows) ([]models.MediaItem, error) {
	var items []models.MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanMediaItem(rows *sql.Rows) (models.MediaItem, error) {
	var item models.MediaItem
	var mediaType, genresJSON string
	var watched int
	var addedAtStr sql.NullString

	if err := rows.Scan(&item.ID, &item.Title, &mediaType, &item.Year, &genresJSON,
		&item.Description, &item.PosterURL, &item.BackdropURL, &item.Rating,
		&item.DurationMin, &addedAtStr, &watched, &item.ProgressSec); err != nil {
		return item, fmt.Errorf("storage: scan media item: %w", err)
	}

	item.Type = models.MediaType(mediaType)
	item.Watched = watched != 0
	if genresJSON != "" {
		if err := json.Unmarshal([]byte(genresJSON), &item.Genres); err != nil {
			return item, fmt.Errorf("storage: unmarshal genres: %w", err)
		}
	}
	if addedAtStr.Valid && addedAtStr.String != "" {
		t, err := time.Parse(time.RFC3339, addedAtStr.String)
		if err == nil {
			item.AddedAt = &t
		}
	}

	return item, nil
}

// AddToList adds a media item to a user's list (watchlist/favorites/library).
func (s *Store) AddToList(userID, mediaID string, kind models.ListKind) error {
	_, err := s.db.Exec(`
		INSERT INTO list_memberships (user_id, media_id, list_kind, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, media_id, list_kind) DO NOTHING
	`, userID, mediaID, string(kind), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storage: add to list: %w", err)
	}
	return nil
}

// RemoveFromList removes a media item from a user's list.
func (s *Store) RemoveFromList(userID, mediaID string, kind models.ListKind) error {
	_, err := s.db.Exec(`DELETE FROM list_memberships WHERE user_id=? AND media_id=? AND list_kind=?`,
		userID, mediaID, string(kind))
	if err != nil {
		return fmt.Errorf("storage: remove from list: %w", err)
	}
	return nil
}

// GetList returns the hydrated media items on a user's list, most-recently
// added first.
func (s *Store) GetList(userID string, kind models.ListKind) ([]models.MediaItem, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.title, m.media_type, m.year, m.genres, m.description, m.poster_url,
			m.backdrop_url, m.rating, m.duration_min, m.added_at, m.watched, m.progress_sec
		FROM list_memberships l
		JOIN media_items m ON m.id = l.media_id
		WHERE l.user_id = ? AND l.list_kind = ?
		ORDER BY l.added_at DESC
	`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("storage: get list: %w", err)
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

// progressStampLayout is a fixed-width, nanosecond UTC timestamp, so that
// progress_updated_at values sort correctly as text even within one second.
const progressStampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// UpdateWatchProgress records playback progress for a media item, stamping
// progress_updated_at so continue-watching can order by recency of update
// rather than library-insertion time.
func (s *Store) UpdateWatchProgress(mediaID string, progressSec int, watched bool) error {
	res, err := s.db.Exec(`UPDATE media_items SET progress_sec=?, watched=?, progress_updated_at=? WHERE id=?`,
		progressSec, boolToInt(watched), time.Now().UTC().Format(progressStampLayout), mediaID)
	if err != nil {
		return fmt.Errorf("storage: update watch progress: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetContinueWatching returns in-progress items across the whole library,
// most-recently-updated-progress first (spec §4.3's continue-watching
// bullet; ordering made explicit per SPEC_FULL.md's "Continue-watching
// ordering"). Rows whose progress was never stamped (pre-migration data)
// sort last rather than first.
func (s *Store) GetContinueWatching() ([]models.MediaItem, error) {
	rows, err := s.db.Query(`
		SELECT id, title, media_type, year, genres, description, poster_url, backdrop_url,
			rating, duration_min, added_at, watched, progress_sec
		FROM media_items
		WHERE progress_sec IS NOT NULL AND progress_sec > 0 AND watched = 0
		ORDER BY progress_updated_at IS NULL, progress_updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: get continue watching: %w", err)
	}
	defer rows.Close()
	return scanMediaItems(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
