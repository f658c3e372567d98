// Package facadehttp is the thin JSON-over-HTTP surface exposing the command
// facade (spec §4.7, §6.3) over Fiber, in the same request/response idiom as
// the rest of this codebase's management API.
package facadehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber"

	"github.com/streamgo/streamgo/internal/facade"
	"github.com/streamgo/streamgo/internal/models"
)

// Handlers groups the HTTP handlers fronting the facade.
type Handlers struct {
	facade *facade.Facade
}

// NewHandlers wires Handlers to the given facade.
func NewHandlers(f *facade.Facade) *Handlers {
	return &Handlers{facade: f}
}

// requestTimeout bounds every facade call triggered from an HTTP request.
const requestTimeout = 10 * time.Second

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func writeError(c *fiber.Ctx, status int, message string) {
	c.Status(status)
	c.Set("Content-Type", "application/json")
	out, _ := json.Marshal(map[string]string{"error": message})
	c.SendString(string(out))
}

func writeJSON(c *fiber.Ctx, status int, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to encode response")
		return
	}
	c.Status(status)
	c.Set("Content-Type", "application/json")
	c.Send(out)
}

// RegisterRoutes wires every facade operation onto app, matching spec §6.3.
func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/api/library", h.HandleGetLibraryItems)
	app.Post("/api/library", h.HandleAddToLibrary)
	app.Get("/api/library/search", h.HandleSearchContent)
	app.Post("/api/library/search", h.HandleSearchLibraryAdvanced)
	app.Get("/api/media/:id", h.HandleGetMediaDetails)

	app.Get("/api/stream-url/:id", h.HandleGetStreamURL)
	app.Post("/api/addons", h.HandleInstallAddon)
	app.Get("/api/addons", h.HandleGetAddons)
	app.Post("/api/addons/:id/enable", h.HandleEnableAddon)
	app.Post("/api/addons/:id/disable", h.HandleDisableAddon)
	app.Delete("/api/addons/:id", h.HandleUninstallAddon)
	app.Get("/api/addons/:id/config", h.HandleGetAddonConfig)
	app.Put("/api/addons/:id/config", h.HandleSetAddonConfig)

	app.Get("/api/settings", h.HandleGetSettings)
	app.Put("/api/settings", h.HandleSaveSettings)
	app.Post("/api/watchlist/:id", h.HandleAddToWatchlist)
	app.Delete("/api/watchlist/:id", h.HandleRemoveFromWatchlist)
	app.Get("/api/watchlist", h.HandleGetWatchlist)
	app.Post("/api/favorites/:id", h.HandleAddToFavorites)
	app.Delete("/api/favorites/:id", h.HandleRemoveFromFavorites)
	app.Get("/api/favorites", h.HandleGetFavorites)
	app.Put("/api/progress/:id", h.HandleUpdateWatchProgress)
	app.Get("/api/continue-watching", h.HandleGetContinueWatching)

	app.Post("/api/playlists", h.HandleCreatePlaylist)
	app.Get("/api/playlists", h.HandleGetPlaylists)
	app.Get("/api/playlists/:id", h.HandleGetPlaylist)
	app.Patch("/api/playlists/:id", h.HandleUpdatePlaylist)
	app.Delete("/api/playlists/:id", h.HandleDeletePlaylist)
	app.Post("/api/playlists/:id/items", h.HandleAddToPlaylist)
	app.Delete("/api/playlists/:id/items/:mediaId", h.HandleRemoveFromPlaylist)
	app.Get("/api/playlists/:id/items", h.HandleGetPlaylistItems)
	app.Put("/api/playlists/:id/order", h.HandleReorderPlaylist)
}

// --- Library ---------------------------------------------------------------

func (h *Handlers) HandleGetLibraryItems(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	items, err := h.facade.GetLibraryItems(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *Handlers) HandleAddToLibrary(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var item models.MediaItem
	if err := json.Unmarshal([]byte(c.Body()), &item); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.facade.AddToLibrary(ctx, item); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handlers) HandleSearchContent(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		writeError(c, http.StatusBadRequest, "q is required")
		return
	}
	items, err := h.facade.SearchContent(ctx, query)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *Handlers) HandleSearchLibraryAdvanced(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var filters models.SearchFilters
	if err := json.Unmarshal([]byte(c.Body()), &filters); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	items, err := h.facade.SearchLibraryAdvanced(ctx, filters)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *Handlers) HandleGetMediaDetails(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	item, err := h.facade.GetMediaDetails(ctx, c.Params("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, item)
}

// --- Streams and addons ------------------------------------------------------

func (h *Handlers) HandleGetStreamURL(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	stream, err := h.facade.GetStreamURL(ctx, c.Params("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, stream)
}

type installAddonRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) HandleInstallAddon(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req installAddonRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(c, http.StatusBadRequest, "url is required")
		return
	}
	addon, err := h.facade.InstallAddon(ctx, req.URL)
	if err != nil {
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(c, http.StatusCreated, addon)
}

func (h *Handlers) HandleGetAddons(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	addons, err := h.facade.GetAddons(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, addons)
}

func (h *Handlers) HandleEnableAddon(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.EnableAddon(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleDisableAddon(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.DisableAddon(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleUninstallAddon(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.UninstallAddon(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleGetAddonConfig(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	cfg, err := h.facade.GetAddonConfig(ctx, c.Params("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

type setAddonConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *Handlers) HandleSetAddonConfig(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req setAddonConfigRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || strings.TrimSpace(req.Key) == "" {
		writeError(c, http.StatusBadRequest, "key is required")
		return
	}
	if err := h.facade.SetAddonConfig(ctx, c.Params("id"), req.Key, req.Value); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// --- User state ---------------------------------------------------------

func (h *Handlers) HandleGetSettings(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	profile, err := h.facade.GetSettings(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, profile)
}

func (h *Handlers) HandleSaveSettings(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var prefs models.UserPreferences
	if err := json.Unmarshal([]byte(c.Body()), &prefs); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.facade.SaveSettings(ctx, prefs); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleAddToWatchlist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.AddToWatchlist(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleRemoveFromWatchlist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.RemoveFromWatchlist(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleGetWatchlist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	items, err := h.facade.GetWatchlist(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (h *Handlers) HandleAddToFavorites(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.AddToFavorites(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleRemoveFromFavorites(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.RemoveFromFavorites(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleGetFavorites(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	items, err := h.facade.GetFavorites(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

type updateProgressRequest struct {
	Seconds int  `json:"seconds"`
	Watched bool `json:"watched"`
}

func (h *Handlers) HandleUpdateWatchProgress(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req updateProgressRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.facade.UpdateWatchProgress(ctx, c.Params("id"), req.Seconds, req.Watched); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleGetContinueWatching(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	items, err := h.facade.GetContinueWatching(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

// --- Playlists ------------------------------------------------------------

type createPlaylistRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type createPlaylistResponse struct {
	ID string `json:"id"`
}

func (h *Handlers) HandleCreatePlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req createPlaylistRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(c, http.StatusBadRequest, "name is required")
		return
	}
	id, err := h.facade.CreatePlaylist(ctx, req.Name, req.Description)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusCreated, createPlaylistResponse{ID: id})
}

func (h *Handlers) HandleGetPlaylists(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	playlists, err := h.facade.GetPlaylists(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, playlists)
}

func (h *Handlers) HandleGetPlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	playlist, err := h.facade.GetPlaylist(ctx, c.Params("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, playlist)
}

type updatePlaylistRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (h *Handlers) HandleUpdatePlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req updatePlaylistRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(c, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.facade.UpdatePlaylist(ctx, c.Params("id"), req.Name, req.Description); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleDeletePlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.DeletePlaylist(ctx, c.Params("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

type addToPlaylistRequest struct {
	MediaID string `json:"media_id"`
}

func (h *Handlers) HandleAddToPlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req addToPlaylistRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || strings.TrimSpace(req.MediaID) == "" {
		writeError(c, http.StatusBadRequest, "media_id is required")
		return
	}
	if err := h.facade.AddToPlaylist(ctx, c.Params("id"), req.MediaID); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleRemoveFromPlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	if err := h.facade.RemoveFromPlaylist(ctx, c.Params("id"), c.Params("mediaId")); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleGetPlaylistItems(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	items, err := h.facade.GetPlaylistItems(ctx, c.Params("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, items)
}

type reorderPlaylistRequest struct {
	MediaIDs []string `json:"media_ids"`
}

func (h *Handlers) HandleReorderPlaylist(c *fiber.Ctx) {
	ctx, cancel := requestContext()
	defer cancel()
	var req reorderPlaylistRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.facade.ReorderPlaylist(ctx, c.Params("id"), req.MediaIDs); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
