// Package streamproxy is the streaming proxy (spec §4.6): a loopback-bound
// HTTP server that serves Range requests against files backed by the torrent
// session.
package streamproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber"
	"github.com/google/uuid"

	"github.com/streamgo/streamgo/internal/torrentsession"
)

// addRequest is the POST /streams body.
type addRequest struct {
	MagnetOrURL string `json:"magnet_or_url"`
	FileIndex   *int   `json:"file_index,omitempty"`
}

// playResponse is returned by the add and play endpoints.
type playResponse struct {
	ID      string `json:"id"`
	PlayURL string `json:"play_url"`
}

// streamEntry tracks the local id-to-infohash mapping and chosen file
// exposed to HTTP clients, since the wire id is not necessarily the raw
// info hash (the facade may reuse one torrent across multiple streams).
type streamEntry struct {
	id        string
	infoHash  string
	fileIndex int
}

// Proxy serves the streaming HTTP surface in front of a torrent session.
type Proxy struct {
	session *torrentsession.Session
	baseURL string

	mu      sync.RWMutex
	streams map[string]*streamEntry
}

// New returns a Proxy bound to session, advertising play URLs rooted at
// baseURL (e.g. "http://127.0.0.1:8787").
func New(session *torrentsession.Session, baseURL string) *Proxy {
	return &Proxy{
		session: session,
		baseURL: baseURL,
		streams: make(map[string]*streamEntry),
	}
}

// RegisterRoutes attaches the proxy's handlers to app, matching the spec
// §4.6 route table exactly.
func (p *Proxy) RegisterRoutes(app *fiber.App) {
	app.Use(permissiveCORS)
	app.Post("/streams", p.handleAdd)
	app.Get("/streams", p.handleList)
	app.Get("/streams/:id", p.handleGet)
	app.Delete("/streams/:id", p.handleDelete)
	app.Get("/streams/:id/play", p.handlePlay)
	app.Get("/streams/:id/file/:index", p.handleFile)
	app.Get("/health", p.handleHealth)
}

// permissiveCORS mirrors spec §6.2: the proxy binds 127.0.0.1 but must
// still answer cross-origin fetches from the Stremio web/desktop player,
// so every origin is allowed.
func permissiveCORS(c *fiber.Ctx) {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Range, Content-Type")
	if c.Method() == "OPTIONS" {
		c.Status(204)
		return
	}
	c.Next()
}

func writeJSONError(c *fiber.Ctx, status int, message string) {
	c.Status(status)
	c.Set("Content-Type", "application/json")
	body, _ := json.Marshal(map[string]string{"error": message})
	c.SendString(string(body))
}

func (p *Proxy) handleAdd(c *fiber.Ctx) {
	var req addRequest
	if err := json.Unmarshal([]byte(c.Body()), &req); err != nil || req.MagnetOrURL == "" {
		writeJSONError(c, 400, "magnet_or_url is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	info, err := p.session.Add(ctx, req.MagnetOrURL, req.FileIndex)
	if err != nil {
		writeJSONError(c, 502, fmt.Sprintf("add stream: %v", err))
		return
	}

	fileIndex := 0
	if req.FileIndex != nil {
		fileIndex = *req.FileIndex
	} else {
		for _, f := range info.Files {
			if f.IsVideo {
				fileIndex = f.Index
				break
			}
		}
	}

	id := uuid.NewString()
	entry := &streamEntry{id: id, infoHash: info.InfoHash, fileIndex: fileIndex}

	p.mu.Lock()
	p.streams[id] = entry
	p.mu.Unlock()

	c.Status(200)
	c.Set("Content-Type", "application/json")
	body, _ := json.Marshal(playResponse{ID: id, PlayURL: p.playURL(id)})
	c.SendString(string(body))
}

func (p *Proxy) handleList(c *fiber.Ctx) {
	p.mu.RLock()
	ids := make([]string, 0, len(p.streams))
	for id := range p.streams {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	infos := make([]*torrentsession.StreamInfo, 0, len(ids))
	for _, id := range ids {
		entry := p.lookup(id)
		if entry == nil {
			continue
		}
		if info, err := p.session.Stats(entry.infoHash); err == nil {
			infos = append(infos, info)
		}
	}

	c.Set("Content-Type", "application/json")
	body, _ := json.Marshal(infos)
	c.SendString(string(body))
}

func (p *Proxy) handleGet(c *fiber.Ctx) {
	id := c.Params("id")
	entry := p.lookup(id)
	if entry == nil {
		writeJSONError(c, 404, "unknown stream id")
		return
	}

	info, err := p.session.Stats(entry.infoHash)
	if err != nil {
		writeJSONError(c, 404, err.Error())
		return
	}

	c.Set("Content-Type", "application/json")
	body, _ := json.Marshal(info)
	c.SendString(string(body))
}

func (p *Proxy) handleDelete(c *fiber.Ctx) {
	id := c.Params("id")
	entry := p.lookup(id)
	if entry == nil {
		writeJSONError(c, 404, "unknown stream id")
		return
	}

	if err := p.session.Remove(entry.infoHash); err != nil {
		writeJSONError(c, 502, err.Error())
		return
	}

	p.mu.Lock()
	delete(p.streams, id)
	p.mu.Unlock()

	c.Status(204)
}

func (p *Proxy) handlePlay(c *fiber.Ctx) {
	id := c.Params("id")
	entry := p.lookup(id)
	if entry == nil {
		writeJSONError(c, 404, "unknown stream id")
		return
	}

	c.Status(200)
	c.Set("Content-Type", "application/json")
	body, _ := json.Marshal(playResponse{ID: id, PlayURL: p.fileURL(id, entry.fileIndex)})
	c.SendString(string(body))
}

func (p *Proxy) handleFile(c *fiber.Ctx) {
	id := c.Params("id")
	entry := p.lookup(id)
	if entry == nil {
		writeJSONError(c, 404, "unknown stream id")
		return
	}

	index, err := strconv.Atoi(c.Params("index"))
	if err != nil || index < 0 {
		writeJSONError(c, 400, "file index must be a non-negative integer")
		return
	}

	file, err := p.session.File(entry.infoHash, index)
	if err != nil {
		writeJSONError(c, 404, err.Error())
		return
	}

	size := file.Length()
	rng, err := parseRange(c.Get("Range"), size)
	if err != nil {
		c.Status(416)
		c.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return
	}

	reader := file.NewReader()
	defer reader.Close()
	if _, err := reader.Seek(rng.start, io.SeekStart); err != nil {
		writeJSONError(c, 500, fmt.Sprintf("seek: %v", err))
		return
	}

	length := rng.end - rng.start + 1

	c.Status(206)
	c.Set("Content-Type", contentTypeForExt(filepath.Ext(file.Path())))
	c.Set("Content-Length", strconv.FormatInt(length, 10))
	c.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	c.Set("Accept-Ranges", "bytes")

	// io.LimitReader bounds the stream to exactly the requested range;
	// fasthttp reads from it in chunks rather than buffering it whole.
	limited := io.LimitReader(reader, length)
	c.Fasthttp.Response.SetBodyStream(limited, int(length))
}

func (p *Proxy) handleHealth(c *fiber.Ctx) {
	c.Set("Content-Type", "application/json")
	c.SendString(`{"status":"ok"}`)
}

func (p *Proxy) lookup(id string) *streamEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.streams[id]
}

func (p *Proxy) playURL(id string) string {
	return p.baseURL + "/streams/" + id + "/play"
}

func (p *Proxy) fileURL(id string, index int) string {
	return p.baseURL + "/streams/" + id + "/file/" + strconv.Itoa(index)
}
