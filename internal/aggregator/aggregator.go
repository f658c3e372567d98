// Package aggregator is the content aggregator (spec §4.4): a parallel
// fan-out over enabled addons that produces a merged catalog/stream result
// plus per-source health.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/streamgo/streamgo/internal/addonclient"
	"github.com/streamgo/streamgo/internal/cache"
	"github.com/streamgo/streamgo/internal/models"
	"github.com/streamgo/streamgo/internal/storage"
)

// perTaskTimeout bounds each addon call, independent of the caller's own
// context deadline (spec §4.4 step 3/"Stream aggregation").
const perTaskTimeout = 3 * time.Second

// maxConcurrentAddons bounds how many addon calls run at once.
const maxConcurrentAddons = 8

// SourceHealth is one addon's per-call outcome, always present in the
// result regardless of success.
type SourceHealth struct {
	AddonID        string
	ResponseTimeMs int64
	Success        bool
	Error          *string
	ItemCount      int
	Priority       int
}

// CatalogResult is the merged output of a catalog aggregation call.
type CatalogResult struct {
	Items       []addonclient.MetaPreview
	Sources     []SourceHealth
	TotalTimeMs int64
}

// StreamResult is the merged output of a stream aggregation call.
type StreamResult struct {
	Streams     []addonclient.Stream
	Sources     []SourceHealth
	TotalTimeMs int64
}

// Aggregator fans out addon calls, merges their results, caches raw addon
// responses (spec §4.2/§4.4), and persists one health row per addon per
// aggregation call (spec §4.3).
type Aggregator struct {
	sem   *semaphore.Weighted
	cache *cache.Cache
	store *storage.Store

	catalogTTL time.Duration
	streamTTL  time.Duration
}

// New returns an Aggregator bounding concurrent addon calls, caching raw
// addon responses in c under catalogTTL/streamTTL, and recording per-addon
// health to store after every aggregation call.
func New(c *cache.Cache, store *storage.Store, catalogTTL, streamTTL time.Duration) *Aggregator {
	return &Aggregator{
		sem:        semaphore.NewWeighted(maxConcurrentAddons),
		cache:      c,
		store:      store,
		catalogTTL: catalogTTL,
		streamTTL:  streamTTL,
	}
}

func catalogCacheKey(mediaType, catalogID string, extra []addonclient.ExtraParam) string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog:%s:%s", mediaType, catalogID)
	for _, e := range extra {
		fmt.Fprintf(&b, ":%s=%s", e.Key, e.Value)
	}
	return b.String()
}

func streamCacheKey(mediaType, mediaID string) string {
	return fmt.Sprintf("stream:%s:%s", mediaType, mediaID)
}

func recordHealth(store *storage.Store, sources []SourceHealth) {
	if store == nil {
		return
	}
	now := time.Now().UTC()
	for _, h := range sources {
		_ = store.RecordAddonHealth(models.AddonHealthRecord{
			AddonID:        h.AddonID,
			Timestamp:      now,
			ResponseTimeMs: h.ResponseTimeMs,
			Success:        h.Success,
			Error:          h.Error,
			ItemCount:      h.ItemCount,
			Priority:       h.Priority,
		})
	}
}

type catalogTaskResult struct {
	items  []addonclient.MetaPreview
	health SourceHealth
}

// QueryCatalog implements spec §4.4's catalog aggregation algorithm: filter
// out disabled addons, sort by priority descending with stable
// ties, fan out one goroutine per addon bounded by a semaphore, accumulate
// results in spawn order (not via a channel, so dedup is deterministic), and
// merge by first-spawn-order-wins on item id.
func (a *Aggregator) QueryCatalog(ctx context.Context, addons []models.Addon, mediaType, catalogID string, extra []addonclient.ExtraParam) (*CatalogResult, error) {
	start := time.Now()

	sorted := make([]models.Addon, 0, len(addons))
	for _, ad := range addons {
		if ad.Enabled {
			sorted = append(sorted, ad)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	cacheKey := catalogCacheKey(mediaType, catalogID, extra)

	results := make([]catalogTaskResult, len(sorted))
	var wg sync.WaitGroup

	for i, addon := range sorted {
		wg.Add(1)
		go func(idx int, ad models.Addon) {
			defer wg.Done()
			results[idx] = runCatalogTask(ctx, a.sem, a.cache, a.catalogTTL, cacheKey, ad, mediaType, catalogID, extra)
		}(i, addon)
	}
	wg.Wait()

	merged := make([]addonclient.MetaPreview, 0)
	seen := make(map[string]bool)
	sources := make([]SourceHealth, 0, len(results))

	for _, r := range results {
		sources = append(sources, r.health)
		for _, item := range r.items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}
	recordHealth(a.store, sources)

	return &CatalogResult{
		Items:       merged,
		Sources:     sources,
		TotalTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func runCatalogTask(ctx context.Context, sem *semaphore.Weighted, c *cache.Cache, ttl time.Duration, cacheKey string, addon models.Addon, mediaType, catalogID string, extra []addonclient.ExtraParam) (result catalogTaskResult) {
	taskStart := time.Now()

	defer func() {
		if r := recover(); r != nil {
			errStr := fmt.Sprintf("Task error: %v", r)
			result = catalogTaskResult{health: SourceHealth{
				AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
				Success: false, Error: &errStr, Priority: addon.Priority,
			}}
		}
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		errStr := err.Error()
		return catalogTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
			Success: false, Error: &errStr, Priority: addon.Priority,
		}}
	}
	defer sem.Release(1)

	if c != nil {
		if cached, ok, err := c.Get(cache.NamespaceAddonResponse, cacheKey, addon.ID); err == nil && ok {
			var resp addonclient.CatalogResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return catalogTaskResult{
					items: resp.Metas,
					health: SourceHealth{
						AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
						Success: true, ItemCount: len(resp.Metas), Priority: addon.Priority,
					},
				}
			}
		}
	}

	client, err := addonclient.New(addon.URL)
	if err != nil {
		errStr := err.Error()
		return catalogTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
			Success: false, Error: &errStr, Priority: addon.Priority,
		}}
	}

	taskCtx, cancel := context.WithTimeout(ctx, perTaskTimeout)
	defer cancel()

	resp, err := client.FetchCatalog(taskCtx, mediaType, catalogID, extra)
	elapsed := time.Since(taskStart).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if taskCtx.Err() == context.DeadlineExceeded {
			errMsg = "Timeout"
		}
		return catalogTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: elapsed, Success: false, Error: &errMsg, Priority: addon.Priority,
		}}
	}

	if c != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			_ = c.Set(cache.NamespaceAddonResponse, cacheKey, addon.ID, encoded, ttl)
		}
	}

	return catalogTaskResult{
		items: resp.Metas,
		health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: elapsed, Success: true,
			ItemCount: len(resp.Metas), Priority: addon.Priority,
		},
	}
}

type streamTaskResult struct {
	streams []addonclient.Stream
	health  SourceHealth
}

// QueryStreams implements spec §4.4's stream aggregation: identical fan-out
// to QueryCatalog, but no dedup -- streams are concatenated in priority
// order since many streams for one media are expected.
func (a *Aggregator) QueryStreams(ctx context.Context, addons []models.Addon, mediaType, mediaID string) (*StreamResult, error) {
	start := time.Now()

	sorted := make([]models.Addon, 0, len(addons))
	for _, ad := range addons {
		if ad.Enabled {
			sorted = append(sorted, ad)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	cacheKey := streamCacheKey(mediaType, mediaID)

	results := make([]streamTaskResult, len(sorted))
	var wg sync.WaitGroup

	for i, addon := range sorted {
		wg.Add(1)
		go func(idx int, ad models.Addon) {
			defer wg.Done()
			results[idx] = runStreamTask(ctx, a.sem, a.cache, a.streamTTL, cacheKey, ad, mediaType, mediaID)
		}(i, addon)
	}
	wg.Wait()

	var merged []addonclient.Stream
	sources := make([]SourceHealth, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.health)
		merged = append(merged, r.streams...)
	}
	recordHealth(a.store, sources)

	return &StreamResult{
		Streams:     merged,
		Sources:     sources,
		TotalTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func runStreamTask(ctx context.Context, sem *semaphore.Weighted, c *cache.Cache, ttl time.Duration, cacheKey string, addon models.Addon, mediaType, mediaID string) (result streamTaskResult) {
	taskStart := time.Now()

	defer func() {
		if r := recover(); r != nil {
			errStr := fmt.Sprintf("Task error: %v", r)
			result = streamTaskResult{health: SourceHealth{
				AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
				Success: false, Error: &errStr, Priority: addon.Priority,
			}}
		}
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		errStr := err.Error()
		return streamTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
			Success: false, Error: &errStr, Priority: addon.Priority,
		}}
	}
	defer sem.Release(1)

	if c != nil {
		if cached, ok, err := c.Get(cache.NamespaceAddonResponse, cacheKey, addon.ID); err == nil && ok {
			var resp addonclient.StreamResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return streamTaskResult{
					streams: resp.Streams,
					health: SourceHealth{
						AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
						Success: true, ItemCount: len(resp.Streams), Priority: addon.Priority,
					},
				}
			}
		}
	}

	client, err := addonclient.New(addon.URL)
	if err != nil {
		errStr := err.Error()
		return streamTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: time.Since(taskStart).Milliseconds(),
			Success: false, Error: &errStr, Priority: addon.Priority,
		}}
	}

	taskCtx, cancel := context.WithTimeout(ctx, perTaskTimeout)
	defer cancel()

	resp, err := client.FetchStreams(taskCtx, mediaType, mediaID)
	elapsed := time.Since(taskStart).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if taskCtx.Err() == context.DeadlineExceeded {
			errMsg = "Timeout"
		}
		return streamTaskResult{health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: elapsed, Success: false, Error: &errMsg, Priority: addon.Priority,
		}}
	}

	if c != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			_ = c.Set(cache.NamespaceAddonResponse, cacheKey, addon.ID, encoded, ttl)
		}
	}

	return streamTaskResult{
		streams: resp.Streams,
		health: SourceHealth{
			AddonID: addon.ID, ResponseTimeMs: elapsed, Success: true,
			ItemCount: len(resp.Streams), Priority: addon.Priority,
		},
	}
}
