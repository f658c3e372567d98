// Package facade is the command facade (spec §4.7, §6.3): the single flat
// surface invoked by the shell. Every operation wraps one storage or network
// call, offloads synchronous storage work onto a bounded worker pool, and
// translates errors into short strings for the caller.
package facade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/streamgo/streamgo/internal/addonclient"
	"github.com/streamgo/streamgo/internal/aggregator"
	"github.com/streamgo/streamgo/internal/cache"
	"github.com/streamgo/streamgo/internal/models"
	"github.com/streamgo/streamgo/internal/storage"
	"github.com/streamgo/streamgo/internal/streamproxy"
	"github.com/streamgo/streamgo/internal/torrentsession"
)

// maxConcurrentBlockingOps bounds the facade's blocking worker pool, standing
// in for tokio::task::spawn_blocking's executor width.
const maxConcurrentBlockingOps = 16

// Facade holds the one shared storage handle (behind a mutex) and shared
// references to the independently-synchronized long-lived services: the
// aggregator, the torrent session, and the streaming proxy.
type Facade struct {
	storeMu sync.Mutex
	store   *storage.Store

	cache      *cache.Cache
	aggregator *aggregator.Aggregator
	session    *torrentsession.Session
	proxy      *streamproxy.Proxy

	pool *semaphore.Weighted
}

// New wires a Facade around its shared services.
func New(store *storage.Store, c *cache.Cache, agg *aggregator.Aggregator, session *torrentsession.Session, proxy *streamproxy.Proxy) *Facade {
	return &Facade{
		store:      store,
		cache:      c,
		aggregator: agg,
		session:    session,
		proxy:      proxy,
		pool:       semaphore.NewWeighted(maxConcurrentBlockingOps),
	}
}

// runBlocking executes fn on the bounded worker pool, serializing access to
// the store via storeMu while fn runs if withStore is true.
func (f *Facade) runBlocking(ctx context.Context, withStore bool, fn func() error) error {
	if err := f.pool.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("facade: %w", err)
	}
	defer f.pool.Release(1)

	if withStore {
		f.storeMu.Lock()
		defer f.storeMu.Unlock()
	}

	if err := fn(); err != nil {
		return fmt.Errorf("facade: %s", err.Error())
	}
	return nil
}

// --- Library -----------------------------------------------------------

// GetLibraryItems returns every item in the library.
func (f *Facade) GetLibraryItems(ctx context.Context) ([]models.MediaItem, error) {
	var out []models.MediaItem
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetLibraryItems()
		return e
	})
	return out, err
}

// AddToLibrary adds or replaces a media item.
func (f *Facade) AddToLibrary(ctx context.Context, item models.MediaItem) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.AddToLibrary(item)
	})
}

// SearchContent searches the library by free text in titles, sorted by title
// (a thin convenience over SearchLibraryAdvanced). It does not query addons:
// "search" has no addon-protocol endpoint.
func (f *Facade) SearchContent(ctx context.Context, query string) ([]models.MediaItem, error) {
	filters := models.SearchFilters{Text: &query, Sort: models.SortTitleAsc}
	return f.SearchLibraryAdvanced(ctx, filters)
}

// SearchLibraryAdvanced runs a filtered, sorted library search.
func (f *Facade) SearchLibraryAdvanced(ctx context.Context, filters models.SearchFilters) ([]models.MediaItem, error) {
	var out []models.MediaItem
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.SearchLibraryAdvanced(filters)
		return e
	})
	return out, err
}

// GetMediaDetails returns a single library item's details.
func (f *Facade) GetMediaDetails(ctx context.Context, id string) (*models.MediaItem, error) {
	items, err := f.GetLibraryItems(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("facade: media item %q not found", id)
}

// --- Streams and addons --------------------------------------------------

// GetStreamURL aggregates stream offers for a content id across enabled
// addons and returns the highest-priority result.
func (f *Facade) GetStreamURL(ctx context.Context, contentID string) (*addonclient.Stream, error) {
	addons, err := f.getEnabledAddons(ctx)
	if err != nil {
		return nil, err
	}

	result, err := f.aggregator.QueryStreams(ctx, addons, "movie", contentID)
	if err != nil {
		return nil, fmt.Errorf("facade: %s", err.Error())
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("facade: no streams available for %q", contentID)
	}
	return &result.Streams[0], nil
}

// InstallAddon fetches and validates a manifest, then registers the addon.
func (f *Facade) InstallAddon(ctx context.Context, url string) (*models.Addon, error) {
	client, err := addonclient.New(url)
	if err != nil {
		return nil, fmt.Errorf("facade: %s", err.Error())
	}

	manifest, err := client.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("facade: %s", err.Error())
	}

	catalogs := make([]models.ManifestCatalog, 0, len(manifest.Catalogs))
	for _, cat := range manifest.Catalogs {
		catalogs = append(catalogs, models.ManifestCatalog{Type: cat.Type, ID: cat.ID, Name: cat.Name})
	}
	types := make([]string, 0, len(manifest.Types))
	for _, t := range manifest.Types {
		types = append(types, string(t))
	}
	resources := make([]string, 0, len(manifest.Resources))
	for _, r := range manifest.Resources {
		resources = append(resources, string(r))
	}

	addon := models.Addon{
		ID:          manifest.ID,
		Name:        manifest.Name,
		Version:     manifest.Version,
		Description: manifest.Description,
		URL:         url,
		Enabled:     true,
		Category:    models.AddonContentProvider,
		InstalledAt: time.Now().UTC(),
		Manifest: models.AddonManifestDoc{
			ID: manifest.ID, Name: manifest.Name, Version: manifest.Version,
			Description: manifest.Description, Resources: resources, Types: types, Catalogs: catalogs,
		},
	}

	err = f.runBlocking(ctx, true, func() error {
		return f.store.UpsertAddon(addon)
	})
	if err != nil {
		return nil, err
	}
	return &addon, nil
}

// builtinAddons mirrors the original implementation's bundled TMDB/YouTube/
// local-files providers, carried forward with real http(s) manifest URLs
// (the original's literal "built-in" URL would be purged by the addon URL
// validation migration -- see DESIGN.md).
func builtinAddons() []models.Addon {
	now := time.Now().UTC()
	return []models.Addon{
		{
			ID: "tmdb_addon", Name: "TMDB Provider", Version: "1.0.0",
			Description: "The Movie Database metadata provider", Author: "StreamGo Team",
			URL: "https://tmdb-addon.example.com", Enabled: true,
			Category: models.AddonMetadataProvider, InstalledAt: now,
			Manifest: models.AddonManifestDoc{
				ID: "tmdb_addon", Name: "TMDB Provider", Version: "1.0.0",
				Description: "The Movie Database metadata provider",
				Resources:   []string{"meta"}, Types: []string{"movie", "series"},
			},
		},
		{
			ID: "youtube_addon", Name: "YouTube Addon", Version: "1.0.0",
			Description: "Stream content from YouTube", Author: "StreamGo Team",
			URL: "https://youtube-addon.example.com", Enabled: true,
			Category: models.AddonContentProvider, InstalledAt: now,
			Manifest: models.AddonManifestDoc{
				ID: "youtube_addon", Name: "YouTube Addon", Version: "1.0.0",
				Description: "Stream content from YouTube",
				Resources:   []string{"catalog", "stream"}, Types: []string{"movie", "series"},
				Catalogs: []models.ManifestCatalog{{Type: "movie", ID: "yt_movies", Name: "YouTube Movies"}},
			},
		},
		{
			ID: "local_files", Name: "Local Files", Version: "1.0.0",
			Description: "Play local video files", Author: "StreamGo Team",
			URL: "https://local-files-addon.example.com", Enabled: false,
			Category: models.AddonContentProvider, InstalledAt: now,
			Manifest: models.AddonManifestDoc{
				ID: "local_files", Name: "Local Files", Version: "1.0.0",
				Description: "Play local video files",
				Resources:   []string{"catalog", "stream"}, Types: []string{"movie", "series"},
				Catalogs: []models.ManifestCatalog{{Type: "movie", ID: "local_movies", Name: "Local Movies"}},
			},
		},
	}
}

// GetAddons lists every registered addon, lazily seeding the built-in set on
// first call if the addon table is empty (spec's Supplemented Features,
// "Built-in addon seeding").
func (f *Facade) GetAddons(ctx context.Context) ([]models.Addon, error) {
	var out []models.Addon
	err := f.runBlocking(ctx, true, func() error {
		existing, e := f.store.ListAddons()
		if e != nil {
			return e
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}

		for _, addon := range builtinAddons() {
			if e := f.store.UpsertAddon(addon); e != nil {
				return e
			}
		}
		out, e = f.store.ListAddons()
		return e
	})
	return out, err
}

// EnableAddon enables a registered addon.
func (f *Facade) EnableAddon(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.SetAddonEnabled(id, true)
	})
}

// DisableAddon disables a registered addon and clears its cached responses.
func (f *Facade) DisableAddon(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		if err := f.store.SetAddonEnabled(id, false); err != nil {
			return err
		}
		return f.cache.ClearAddon(id)
	})
}

// UninstallAddon removes a registered addon and its cached responses.
func (f *Facade) UninstallAddon(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		if err := f.cache.ClearAddon(id); err != nil {
			return err
		}
		return f.store.DeleteAddon(id)
	})
}

// GetAddonConfig returns an addon's key/value configuration (supplementing
// §6.3's addon operations, see SPEC_FULL.md "Addon config key/value store").
func (f *Facade) GetAddonConfig(ctx context.Context, addonID string) (map[string]string, error) {
	var out map[string]string
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetAddonConfig(addonID)
		return e
	})
	return out, err
}

// SetAddonConfig sets a single configuration key/value pair for an addon.
func (f *Facade) SetAddonConfig(ctx context.Context, addonID, key, value string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.SetAddonConfig(addonID, key, value)
	})
}

func (f *Facade) getEnabledAddons(ctx context.Context) ([]models.Addon, error) {
	var out []models.Addon
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.ListEnabledAddons()
		return e
	})
	return out, err
}

// --- User state ----------------------------------------------------------

// GetSettings returns the default user's preferences, creating a profile
// with defaults on first use.
func (f *Facade) GetSettings(ctx context.Context) (*models.UserProfile, error) {
	var out *models.UserProfile
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetOrCreateUserProfile(models.DefaultUserID)
		return e
	})
	return out, err
}

// SaveSettings persists the default user's preferences.
func (f *Facade) SaveSettings(ctx context.Context, prefs models.UserPreferences) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.SaveUserProfile(models.UserProfile{
			ID: models.DefaultUserID, Username: models.DefaultUserID, Preferences: prefs,
		})
	})
}

// AddToWatchlist adds a media item to the default user's watchlist.
func (f *Facade) AddToWatchlist(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.AddToList(models.DefaultUserID, id, models.ListWatchlist)
	})
}

// RemoveFromWatchlist removes a media item from the default user's watchlist.
func (f *Facade) RemoveFromWatchlist(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.RemoveFromList(models.DefaultUserID, id, models.ListWatchlist)
	})
}

// GetWatchlist returns the default user's watchlist.
func (f *Facade) GetWatchlist(ctx context.Context) ([]models.MediaItem, error) {
	var out []models.MediaItem
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetList(models.DefaultUserID, models.ListWatchlist)
		return e
	})
	return out, err
}

// AddToFavorites adds a media item to the default user's favorites.
func (f *Facade) AddToFavorites(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.AddToList(models.DefaultUserID, id, models.ListFavorites)
	})
}

// RemoveFromFavorites removes a media item from the default user's favorites.
func (f *Facade) RemoveFromFavorites(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.RemoveFromList(models.DefaultUserID, id, models.ListFavorites)
	})
}

// GetFavorites returns the default user's favorites.
func (f *Facade) GetFavorites(ctx context.Context) ([]models.MediaItem, error) {
	var out []models.MediaItem
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetList(models.DefaultUserID, models.ListFavorites)
		return e
	})
	return out, err
}

// UpdateWatchProgress records playback progress for a media item.
func (f *Facade) UpdateWatchProgress(ctx context.Context, id string, seconds int, watched bool) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.UpdateWatchProgress(id, seconds, watched)
	})
}

// GetContinueWatching returns in-progress items across the library.
func (f *Facade) GetContinueWatching(ctx context.Context) ([]models.MediaItem, error) {
	var out []models.MediaItem
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetContinueWatching()
		return e
	})
	return out, err
}

// --- Playlists -------------------------------------------------------------

// CreatePlaylist creates a new playlist owned by the default user.
func (f *Facade) CreatePlaylist(ctx context.Context, name string, description *string) (string, error) {
	id := uuid.NewString()
	err := f.runBlocking(ctx, true, func() error {
		_, e := f.store.CreatePlaylist(id, name, description, models.DefaultUserID)
		return e
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetPlaylists returns every playlist.
func (f *Facade) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var out []models.Playlist
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetPlaylists()
		return e
	})
	return out, err
}

// GetPlaylist returns a single playlist by id.
func (f *Facade) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var out *models.Playlist
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetPlaylist(id)
		return e
	})
	return out, err
}

// UpdatePlaylist renames/redescribes a playlist.
func (f *Facade) UpdatePlaylist(ctx context.Context, id, name string, description *string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.UpdatePlaylist(id, name, description)
	})
}

// DeletePlaylist removes a playlist.
func (f *Facade) DeletePlaylist(ctx context.Context, id string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.DeletePlaylist(id)
	})
}

// AddToPlaylist appends a media item to a playlist.
func (f *Facade) AddToPlaylist(ctx context.Context, playlistID, mediaID string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.AddToPlaylist(playlistID, mediaID)
	})
}

// RemoveFromPlaylist removes a media item from a playlist.
func (f *Facade) RemoveFromPlaylist(ctx context.Context, playlistID, mediaID string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.RemoveFromPlaylist(playlistID, mediaID)
	})
}

// GetPlaylistItems returns a playlist's media ids in order.
func (f *Facade) GetPlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	var out []string
	err := f.runBlocking(ctx, true, func() error {
		var e error
		out, e = f.store.GetPlaylistItems(playlistID)
		return e
	})
	return out, err
}

// ReorderPlaylist applies the "rewrite-all, not-mentioned-stay-appended"
// reorder contract (spec §4.3.1).
func (f *Facade) ReorderPlaylist(ctx context.Context, playlistID string, mediaIDs []string) error {
	return f.runBlocking(ctx, true, func() error {
		return f.store.ReorderPlaylistItems(playlistID, mediaIDs)
	})
}
