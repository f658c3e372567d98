// Package models holds the data types shared across the storage engine,
// aggregator, and facade: media items, user profiles, list membership,
// playlists, and addon registrations.
package models

import "time"

// MediaType enumerates the kinds of media the library tracks.
type MediaType string

const (
	MediaMovie       MediaType = "movie"
	MediaSeries      MediaType = "series"
	MediaEpisode     MediaType = "episode"
	MediaDocumentary MediaType = "documentary"
	MediaLiveTV      MediaType = "live-tv"
	MediaPodcast     MediaType = "podcast"
)

// MediaItem is a single entry in the federated library.
type MediaItem struct {
	ID          string
	Title       string
	Type        MediaType
	Year        *int
	Genres      []string
	Description *string
	PosterURL   *string
	BackdropURL *string
	Rating      *float64
	DurationMin *int
	AddedAt     *time.Time
	Watched     bool
	ProgressSec *int
}

// UserPreferences holds a user's playback and UI preferences.
type UserPreferences struct {
	Theme              string `json:"theme"`
	DefaultQuality     string `json:"defaultQuality"`
	AutoplayNext       bool   `json:"autoplayNext"`
	SubtitlesEnabled   bool   `json:"subtitlesEnabled"`
	SubtitleLanguage   string `json:"subtitleLanguage"`
}

// DefaultUserPreferences mirrors the original source's Default impl.
func DefaultUserPreferences() UserPreferences {
	return UserPreferences{
		Theme:            "auto",
		DefaultQuality:   "auto",
		AutoplayNext:     true,
		SubtitlesEnabled: false,
		SubtitleLanguage: "en",
	}
}

// UserProfile is a single user's identity and preferences.
type UserProfile struct {
	ID          string
	Username    string
	Email       *string
	Preferences UserPreferences
}

// DefaultUserID is used when the shell does not authenticate (spec §6.3).
const DefaultUserID = "default_user"

// ListKind enumerates the list-membership kinds a media item can belong to.
type ListKind string

const (
	ListLibrary   ListKind = "library"
	ListWatchlist ListKind = "watchlist"
	ListFavorites ListKind = "favorites"
)

// ListMembership is a (user, media, list-kind) triple.
type ListMembership struct {
	UserID    string
	MediaID   string
	Kind      ListKind
	AddedAt   time.Time
}

// Playlist is a named, ordered collection of media items owned by a user.
type Playlist struct {
	ID          string
	Name        string
	Description *string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ItemCount   int
}

// AddonCategory enumerates the capability classes an addon can claim.
type AddonCategory string

const (
	AddonContentProvider  AddonCategory = "content-provider"
	AddonMetadataProvider AddonCategory = "metadata-provider"
	AddonSubtitles        AddonCategory = "subtitles"
	AddonPlayer           AddonCategory = "player"
)

// AddonManifestDoc is the denormalized manifest document stored alongside an
// addon registration row. It is distinct from the wire-format manifest the
// addon protocol client parses (addonclient.Manifest) -- this is the
// storage-side projection kept for quick capability lookups.
type AddonManifestDoc struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description"`
	Resources   []string         `json:"resources"`
	Types       []string         `json:"types"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
}

// ManifestCatalog is one catalog entry within AddonManifestDoc.
type ManifestCatalog struct {
	Type   string   `json:"type"`
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres,omitempty"`
}

// Addon is a registered content/metadata provider (spec §3.5).
type Addon struct {
	ID          string
	Name        string
	Version     string
	Description string
	Author      string
	URL         string
	Enabled     bool
	Category    AddonCategory
	Priority    int
	InstalledAt time.Time
	Manifest    AddonManifestDoc
}

// Episode is a cached per-series episode record (supplemented feature, see
// SPEC_FULL.md "Episode cache").
type Episode struct {
	ID          string
	SeriesID    string
	Season      int
	Number      int
	Title       string
	AirDate     *time.Time
	Watched     bool
	ProgressSec *int
}

// AddonHealthRecord is one per-call health observation (supplemented
// feature, see SPEC_FULL.md "Addon health persistence").
type AddonHealthRecord struct {
	AddonID          string
	Timestamp        time.Time
	ResponseTimeMs   int64
	Success          bool
	Error            *string
	ItemCount        int
	Priority         int
}

// AddonHealthSummary is the rolling per-addon health summary.
type AddonHealthSummary struct {
	AddonID          string
	TotalCalls       int
	SuccessCalls     int
	AvgResponseTimeMs float64
	LastSuccessAt    *time.Time
	LastFailureAt    *time.Time
}

// SearchFilters describes an advanced library search request (spec §4.3).
type SearchFilters struct {
	Text        *string
	Genres      []string
	YearMin     *int
	YearMax     *int
	Type        *MediaType
	Watched     *bool
	MinRating   *float64
	MaxDuration *int
	Sort        SortOrder
}

// SortOrder enumerates the advanced-search sort options.
type SortOrder string

const (
	SortTitleAsc      SortOrder = "title-asc"
	SortTitleDesc     SortOrder = "title-desc"
	SortRatingDesc    SortOrder = "rating-desc"
	SortDateAddedDesc SortOrder = "date-added-desc"
	SortYearDesc      SortOrder = "year-desc"
)
