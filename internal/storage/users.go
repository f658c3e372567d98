package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/streamgo/streamgo/internal/models"
)

// GetUserProfile fetches a user profile by id.
func (s *Store) GetUserProfile(id string) (*models.UserProfile, error) {
	var p models.UserProfile
	var email sql.NullString
	var prefsJSON string

	err := s.db.QueryRow(`SELECT id, username, email, preferences FROM user_profiles WHERE id=?`, id).
		Scan(&p.ID, &p.Username, &email, &prefsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get user profile: %w", err)
	}

	if email.Valid {
		p.Email = &email.String
	}
	if err := json.Unmarshal([]byte(prefsJSON), &p.Preferences); err != nil {
		return nil, fmt.Errorf("storage: unmarshal preferences: %w", err)
	}
	return &p, nil
}

// SaveUserProfile upserts a user profile.
func (s *Store) SaveUserProfile(p models.UserProfile) error {
	prefsJSON, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("storage: marshal preferences: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO user_profiles (id, username, email, preferences) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username=excluded.username, email=excluded.email,
			preferences=excluded.preferences
	`, p.ID, p.Username, p.Email, string(prefsJSON))
	if err != nil {
		return fmt.Errorf("storage: save user profile: %w", err)
	}
	return nil
}

// GetOrCreateUserProfile returns the profile for id, creating one with
// default preferences if it does not exist yet. Mirrors lib.rs's
// get_settings/save_settings lazily-seeded-profile behavior.
func (s *Store) GetOrCreateUserProfile(id string) (*models.UserProfile, error) {
	p, err := s.GetUserProfile(id)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	fresh := models.UserProfile{
		ID:          id,
		Username:    id,
		Preferences: models.DefaultUserPreferences(),
	}
	if err := s.SaveUserProfile(fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}
