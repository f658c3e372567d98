package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/streamgo/streamgo/internal/cache"
	"github.com/streamgo/streamgo/internal/models"
	"github.com/streamgo/streamgo/internal/storage"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, _ := newTestAggregatorWithStore(t)
	return agg
}

func newTestAggregatorWithStore(t *testing.T) (*Aggregator, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(cache.New(store.DB()), store, time.Hour, 5*time.Minute), store
}

func manifestHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"id":"test","name":"Test","version":"1.0.0","resources":["catalog"]}`))
}

func newCatalogAddon(t *testing.T, id string, priority int, body string, delay time.Duration) models.Addon {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.json" {
			manifestHandler(w, r)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return models.Addon{ID: id, URL: srv.URL, Priority: priority, Enabled: true}
}

func TestQueryCatalog_DedupsByFirstSpawnOrderWins(t *testing.T) {
	a := newTestAggregator(t)

	addonHigh := newCatalogAddon(t, "high", 10, `{"metas":[{"id":"m1","type":"movie","name":"From High"}]}`, 0)
	addonLow := newCatalogAddon(t, "low", 1, `{"metas":[{"id":"m1","type":"movie","name":"From Low"},{"id":"m2","type":"movie","name":"Only Low"}]}`, 0)

	result, err := a.QueryCatalog(context.Background(), []models.Addon{addonLow, addonHigh}, "movie", "top", nil)
	if err != nil {
		t.Fatalf("QueryCatalog: %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}

	var m1 *string
	for _, it := range result.Items {
		if it.ID == "m1" {
			m1 = &it.Name
		}
	}
	if m1 == nil || *m1 != "From High" {
		t.Errorf("m1 should come from the higher-priority addon, got %v", m1)
	}
}

func TestQueryCatalog_TimeoutSurfacesAsSourceHealth(t *testing.T) {
	a := newTestAggregator(t)
	slow := newCatalogAddon(t, "slow", 5, `{"metas":[]}`, 4*time.Second)

	result, err := a.QueryCatalog(context.Background(), []models.Addon{slow}, "movie", "top", nil)
	if err != nil {
		t.Fatalf("QueryCatalog: %v", err)
	}

	if len(result.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(result.Sources))
	}
	h := result.Sources[0]
	if h.Success {
		t.Error("expected success=false on timeout")
	}
	if h.Error == nil || *h.Error != "Timeout" {
		t.Errorf("error = %v, want Timeout", h.Error)
	}
}

func TestQueryCatalog_InvalidURLProducesFailedHealth(t *testing.T) {
	a := newTestAggregator(t)
	bad := models.Addon{ID: "bad", URL: "not-a-url", Priority: 0, Enabled: true}

	result, err := a.QueryCatalog(context.Background(), []models.Addon{bad}, "movie", "top", nil)
	if err != nil {
		t.Fatalf("QueryCatalog: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].Success {
		t.Fatalf("expected one failed source health, got %+v", result.Sources)
	}
}

func TestQueryStreams_NoDedup(t *testing.T) {
	a := newTestAggregator(t)

	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"streams":[{"url":"http://a/1"}]}`))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"streams":[{"url":"http://b/1"}]}`))
	}))
	defer srvB.Close()

	addons := []models.Addon{
		{ID: "a", URL: srvA.URL, Priority: 2, Enabled: true},
		{ID: "b", URL: srvB.URL, Priority: 1, Enabled: true},
	}

	result, err := a.QueryStreams(context.Background(), addons, "movie", "tt123")
	if err != nil {
		t.Fatalf("QueryStreams: %v", err)
	}
	if len(result.Streams) != 2 {
		t.Fatalf("got %d streams, want 2 (no dedup)", len(result.Streams))
	}
}

func TestQueryCatalog_RecordsAddonHealth(t *testing.T) {
	a, store := newTestAggregatorWithStore(t)
	addon := newCatalogAddon(t, "healthy", 1, `{"metas":[{"id":"m1","type":"movie","name":"M1"}]}`, 0)

	if _, err := a.QueryCatalog(context.Background(), []models.Addon{addon}, "movie", "top", nil); err != nil {
		t.Fatalf("QueryCatalog: %v", err)
	}

	summary, err := store.GetAddonHealthSummary("healthy")
	if err != nil {
		t.Fatalf("GetAddonHealthSummary: %v", err)
	}
	if summary.TotalCalls != 1 || summary.SuccessCalls != 1 {
		t.Errorf("got %+v, want one successful call recorded", summary)
	}
}

func TestQueryCatalog_SecondCallHitsCacheNotOrigin(t *testing.T) {
	a := newTestAggregator(t)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.json" {
			manifestHandler(w, r)
			return
		}
		hits++
		w.Write([]byte(`{"metas":[{"id":"m1","type":"movie","name":"Cached"}]}`))
	}))
	t.Cleanup(srv.Close)
	addon := models.Addon{ID: "cacheable", URL: srv.URL, Priority: 1, Enabled: true}

	for i := 0; i < 2; i++ {
		if _, err := a.QueryCatalog(context.Background(), []models.Addon{addon}, "movie", "top", nil); err != nil {
			t.Fatalf("QueryCatalog #%d: %v", i, err)
		}
	}

	if hits != 1 {
		t.Errorf("addon hit %d times, want 1 (second call should be served from cache)", hits)
	}
}
