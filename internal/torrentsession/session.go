// Package torrentsession is the torrent session (spec §4.5): a single
// embedded *torrent.Client with DHT and fast-resume enabled, exposing add,
// remove, and stats over magnet URIs and .torrent URLs.
package torrentsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
)

// listenPortLow/listenPortHigh bound the session's TCP/UTP listen range
// (spec §4.5: "listen port range 6881-6890"). Open binds the first port in
// the range on which the client starts.
const (
	listenPortLow  = 6881
	listenPortHigh = 6890
)

// sessionFileName is the resume/session metadata file, persisted as JSON
// directly under the session's data dir (spec §4.5: "persistence as JSON
// in D/.session").
const sessionFileName = ".session"

// resumeInfoTimeout bounds how long Open waits for a resumed torrent's
// metadata before giving up on restoring it.
const resumeInfoTimeout = 30 * time.Second

// persistedStream is one active stream's resume record: enough to re-add
// the torrent and restore its file selection after a restart.
type persistedStream struct {
	Source    string `json:"source"`
	FileIndex *int   `json:"file_index,omitempty"`
}

// sessionFile is the on-disk shape of D/.session.
type sessionFile struct {
	Streams []persistedStream `json:"streams"`
}

// videoExtensions is the derived is_video extension set, matching spec
// §4.5 exactly.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true, ".3gp": true,
}

// FileInfo describes one file within a torrent.
type FileInfo struct {
	Index   int
	Path    string
	Length  int64
	IsVideo bool
}

// StreamInfo is the state of one managed torrent, returned by Add and Stats.
type StreamInfo struct {
	InfoHash        string
	Name            string
	State           string
	TotalBytes      int64
	DownloadedBytes int64
	DownloadRateBps int64
	UploadRateBps   int64
	Progress        float64
	Files           []FileInfo
}

// Session owns the embedded torrent client and its managed set of torrents.
type Session struct {
	client  *torrent.Client
	dataDir string

	mu      sync.Mutex
	streams map[string]persistedStream // keyed by info hash hex
}

// Open configures and starts a torrent client rooted at dataDir, with
// session/resume metadata persisted under dataDir/.session (spec §4.5).
// Any streams recorded in an existing .session file are re-added in the
// background; Open itself does not block on their metadata.
func Open(dataDir string) (*Session, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.NoDHT = false
	cfg.DisableTCP = false
	cfg.DisableUTP = false
	cfg.Seed = false
	cfg.NoUpload = false
	var client *torrent.Client
	var err error
	for port := listenPortLow; port <= listenPortHigh; port++ {
		cfg.ListenPort = port
		client, err = torrent.NewClient(cfg)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("torrentsession: open: %w", err)
	}

	s := &Session{client: client, dataDir: dataDir, streams: make(map[string]persistedStream)}
	s.loadSession()
	return s, nil
}

// loadSession reads D/.session, if present, and kicks off a best-effort
// resume of each recorded stream. A missing or corrupt file just means an
// empty session -- it is never fatal to Open.
func (s *Session) loadSession() {
	data, err := os.ReadFile(filepath.Join(s.dataDir, sessionFileName))
	if err != nil {
		return
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return
	}
	for _, p := range sf.Streams {
		go s.resumeStream(p)
	}
}

// resumeStream re-adds a previously persisted stream and restores its file
// selection. It gives up silently past resumeInfoTimeout -- the next Add
// call against the same source will simply start over.
func (s *Session) resumeStream(p persistedStream) {
	t, err := s.addOrGet(p.Source)
	if err != nil {
		return
	}

	select {
	case <-t.GotInfo():
	case <-time.After(resumeInfoTimeout):
		return
	}

	applyFileSelection(t, p.FileIndex)
	s.recordStream(t.InfoHash().HexString(), p.Source, p.FileIndex)
}

// recordStream adds or updates one stream's resume record and rewrites
// D/.session.
func (s *Session) recordStream(infoHash, source string, fileIndex *int) {
	s.mu.Lock()
	s.streams[infoHash] = persistedStream{Source: source, FileIndex: fileIndex}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.writeSession(snapshot)
}

// forgetStream removes a stream's resume record and rewrites D/.session.
func (s *Session) forgetStream(infoHash string) {
	s.mu.Lock()
	delete(s.streams, infoHash)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.writeSession(snapshot)
}

// snapshotLocked must be called with s.mu held.
func (s *Session) snapshotLocked() sessionFile {
	streams := make([]persistedStream, 0, len(s.streams))
	for _, p := range s.streams {
		streams = append(streams, p)
	}
	return sessionFile{Streams: streams}
}

func (s *Session) writeSession(sf sessionFile) {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.dataDir, sessionFileName), data, 0o644)
}

// applyFileSelection restricts wire-level download to fileIndex, or
// downloads every file when fileIndex is nil.
func applyFileSelection(t *torrent.Torrent, fileIndex *int) {
	if fileIndex == nil {
		t.DownloadAll()
		return
	}
	for i, f := range t.Files() {
		if i == *fileIndex {
			f.SetPriority(torrent.PiecePriorityNormal)
		} else {
			f.SetPriority(torrent.PiecePriorityNone)
		}
	}
}

// Close shuts down the embedded torrent client. It never deletes on-disk
// downloaded data.
func (s *Session) Close() error {
	errs := s.client.Close()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("torrentsession: close: %w", err)
		}
	}
	return nil
}

// Add accepts a magnet URI or a .torrent URL, optionally restricting
// wire-level download to one file, and blocks until metadata is available.
func (s *Session) Add(ctx context.Context, source string, fileIndex *int) (*StreamInfo, error) {
	t, err := s.addOrGet(source)
	if err != nil {
		return nil, fmt.Errorf("torrentsession: add: %w", err)
	}

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		return nil, fmt.Errorf("torrentsession: add: %w", ctx.Err())
	}

	if fileIndex != nil {
		files := t.Files()
		if *fileIndex < 0 || *fileIndex >= len(files) {
			return nil, fmt.Errorf("torrentsession: add: file index %d out of range", *fileIndex)
		}
	}
	applyFileSelection(t, fileIndex)

	info := buildStreamInfo(t)
	s.recordStream(info.InfoHash, source, fileIndex)
	return info, nil
}

func (s *Session) addOrGet(source string) (*torrent.Torrent, error) {
	if strings.HasPrefix(source, "magnet:") {
		if m, err := metainfo.ParseMagnetURI(source); err == nil {
			if existing, ok := s.client.Torrent(m.InfoHash); ok {
				return existing, nil
			}
		}
		return s.client.AddMagnet(source)
	}

	// Treat source as a .torrent URL.
	resp, err := http.Get(source)
	if err != nil {
		return nil, fmt.Errorf("fetch torrent file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read torrent file: %w", err)
	}

	mi, err := metainfo.Load(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse torrent file: %w", err)
	}

	return s.client.AddTorrent(mi)
}

// Remove stops and deletes the torrent's session record. On-disk downloaded
// files are never deleted (spec §4.5: "On-disk files are NOT deleted").
func (s *Session) Remove(infoHash string) error {
	ih := metainfo.NewHashFromHex(infoHash)
	t, ok := s.client.Torrent(ih)
	if !ok {
		return fmt.Errorf("torrentsession: remove: unknown info hash %s", infoHash)
	}
	t.Drop()
	s.forgetStream(infoHash)
	return nil
}

// Stats returns the current state of one managed torrent.
func (s *Session) Stats(infoHash string) (*StreamInfo, error) {
	ih := metainfo.NewHashFromHex(infoHash)
	t, ok := s.client.Torrent(ih)
	if !ok {
		return nil, fmt.Errorf("torrentsession: stats: unknown info hash %s", infoHash)
	}
	return buildStreamInfo(t), nil
}

// List returns StreamInfo for every torrent the session currently manages.
func (s *Session) List() []StreamInfo {
	torrents := s.client.Torrents()
	out := make([]StreamInfo, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, *buildStreamInfo(t))
	}
	return out
}

// File returns the *torrent.File for infoHash at the given index, for the
// streaming proxy to open a reader against.
func (s *Session) File(infoHash string, index int) (*torrent.File, error) {
	ih := metainfo.NewHashFromHex(infoHash)
	t, ok := s.client.Torrent(ih)
	if !ok {
		return nil, fmt.Errorf("torrentsession: file: unknown info hash %s", infoHash)
	}
	files := t.Files()
	if index < 0 || index >= len(files) {
		return nil, fmt.Errorf("torrentsession: file: index %d out of range", index)
	}
	return files[index], nil
}

// BestVideoFileIndex returns the index of the largest file whose extension
// is in the is_video set, or -1 if none qualifies.
func BestVideoFileIndex(t *torrent.Torrent) int {
	best := -1
	var bestLen int64
	for i, f := range t.Files() {
		if !IsVideoPath(f.Path()) {
			continue
		}
		if best == -1 || f.Length() > bestLen {
			best, bestLen = i, f.Length()
		}
	}
	return best
}

// IsVideoPath reports whether path's extension is in spec §4.5's is_video set.
func IsVideoPath(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// rateSample is one torrent's last-observed cumulative byte counters, used
// to derive transient up/down speed across successive Stats calls.
type rateSample struct {
	at         time.Time
	downloaded int64
	uploaded   int64
}

// rateSampler turns cumulative byte counters into bytes/s by diffing against
// the previous observation (spec §4.5: "transient up/down speed in bytes/s").
type rateSampler struct {
	mu      sync.Mutex
	samples map[string]rateSample
}

var globalRateSampler = &rateSampler{samples: make(map[string]rateSample)}

func (r *rateSampler) sample(infoHash string, downloaded, uploaded int64) (downBps, upBps int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	prev, ok := r.samples[infoHash]
	r.samples[infoHash] = rateSample{at: now, downloaded: downloaded, uploaded: uploaded}

	if !ok {
		return 0, 0
	}

	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}

	downBps = int64(float64(downloaded-prev.downloaded) / elapsed)
	upBps = int64(float64(uploaded-prev.uploaded) / elapsed)
	if downBps < 0 {
		downBps = 0
	}
	if upBps < 0 {
		upBps = 0
	}
	return downBps, upBps
}

func buildStreamInfo(t *torrent.Torrent) *StreamInfo {
	info := &StreamInfo{
		InfoHash: t.InfoHash().HexString(),
		Name:     t.Name(),
	}

	if t.Info() == nil {
		info.State = "fetching metadata"
		return info
	}

	var total, downloaded int64
	files := t.Files()
	infos := make([]FileInfo, 0, len(files))
	for i, f := range files {
		total += f.Length()
		infos = append(infos, FileInfo{
			Index: i, Path: f.Path(), Length: f.Length(), IsVideo: IsVideoPath(f.Path()),
		})
	}
	downloaded = t.BytesCompleted()

	info.TotalBytes = total
	info.DownloadedBytes = downloaded
	info.Files = infos
	if total > 0 {
		info.Progress = float64(downloaded) / float64(total) * 100
	}
	// Transient rates need sampling over an interval; the session itself only
	// exposes cumulative counters, so rate tracking lives in the rate sampler
	// above rather than here.
	info.DownloadRateBps, info.UploadRateBps = globalRateSampler.sample(t.InfoHash().HexString(), downloaded, t.Stats().BytesWrittenData.Int64())
	info.State = "downloading"
	if downloaded >= total && total > 0 {
		info.State = "complete"
	}

	return info
}
