package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/streamgo/streamgo/internal/models"
)

// UpsertEpisode inserts or replaces a cached episode record (supplemented
// feature, see SPEC_FULL.md "Episode cache").
func (s *Store) UpsertEpisode(e models.Episode) error {
	var airDate interface{}
	if e.AirDate != nil {
		airDate = e.AirDate.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (id, series_id, season, number, title, air_date, watched, progress_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			series_id=excluded.series_id, season=excluded.season, number=excluded.number,
			title=excluded.title, air_date=excluded.air_date, watched=excluded.watched,
			progress_sec=excluded.progress_sec
	`, e.ID, e.SeriesID, e.Season, e.Number, e.Title, airDate, boolToInt(e.Watched), e.ProgressSec)
	if err != nil {
		return fmt.Errorf("storage: upsert episode: %w", err)
	}
	return nil
}

// GetEpisodesForSeries returns every cached episode for a series, ordered by
// season then episode number.
func (s *Store) GetEpisodesForSeries(seriesID string) ([]models.Episode, error) {
	rows, err := s.db.Query(`SELECT id, series_id, season, number, title, air_date, watched, progress_sec
		FROM episodes WHERE series_id=? ORDER BY season, number`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("storage: get episodes: %w", err)
	}
	defer rows.Close()

	var out []models.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEpisodeProgress records playback progress for a single episode.
func (s *Store) UpdateEpisodeProgress(episodeID string, progressSec int, watched bool) error {
	res, err := s.db.Exec(`UPDATE episodes SET progress_sec=?, watched=? WHERE id=?`,
		progressSec, boolToInt(watched), episodeID)
	if err != nil {
		return fmt.Errorf("storage: update episode progress: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEpisodesForSeries purges cached episodes for a series, used when a
// series is removed from the library.
func (s *Store) DeleteEpisodesForSeries(seriesID string) error {
	_, err := s.db.Exec(`DELETE FROM episodes WHERE series_id=?`, seriesID)
	if err != nil {
		return fmt.Errorf("storage: delete episodes: %w", err)
	}
	return nil
}

func scanEpisode(rows *sql.Rows) (models.Episode, error) {
	var e models.Episode
	var airDate sql.NullString
	var watched int
	if err := rows.Scan(&e.ID, &e.SeriesID, &e.Season, &e.Number, &e.Title, &airDate, &watched, &e.ProgressSec); err != nil {
		return e, fmt.Errorf("storage: scan episode: %w", err)
	}
	e.Watched = watched != 0
	if airDate.Valid && airDate.String != "" {
		if t, err := time.Parse(time.RFC3339, airDate.String); err == nil {
			e.AirDate = &t
		}
	}
	return e, nil
}
