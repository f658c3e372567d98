package storage

import (
	"testing"
	"time"

	"github.com/streamgo/streamgo/internal/models"
)

func testAddon(id string, priority int, enabled bool) models.Addon {
	return models.Addon{
		ID: id, Name: id, Version: "1.0.0", URL: "https://example.com/" + id,
		Enabled: enabled, Category: models.AddonContentProvider, Priority: priority,
		InstalledAt: time.Now().UTC(),
		Manifest:    models.AddonManifestDoc{ID: id, Name: id, Version: "1.0.0", Resources: []string{"catalog"}},
	}
}

func TestListAddons_OrderedByPriorityDescending(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertAddon(testAddon("low", 1, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}
	if err := s.UpsertAddon(testAddon("high", 10, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}

	addons, err := s.ListAddons()
	if err != nil {
		t.Fatalf("ListAddons: %v", err)
	}
	if len(addons) != 2 || addons[0].ID != "high" || addons[1].ID != "low" {
		t.Errorf("got %+v, want [high, low]", addons)
	}
}

func TestListEnabledAddons_ExcludesDisabled(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertAddon(testAddon("on", 5, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}
	if err := s.UpsertAddon(testAddon("off", 10, false)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}

	enabled, err := s.ListEnabledAddons()
	if err != nil {
		t.Fatalf("ListEnabledAddons: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "on" {
		t.Errorf("got %+v, want only [on]", enabled)
	}
}

func TestUpsertAddon_OverwritesOnConflict(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertAddon(testAddon("a1", 1, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}
	updated := testAddon("a1", 1, true)
	updated.Name = "Renamed"
	if err := s.UpsertAddon(updated); err != nil {
		t.Fatalf("UpsertAddon (update): %v", err)
	}

	got, err := s.GetAddon("a1")
	if err != nil {
		t.Fatalf("GetAddon: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("got name %q, want Renamed", got.Name)
	}
}

func TestSetAddonEnabled_UnknownIDIsNotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAddonEnabled("missing", true); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAddonConfig_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertAddon(testAddon("cfg1", 1, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}

	if err := s.SetAddonConfig("cfg1", "api_key", "secret"); err != nil {
		t.Fatalf("SetAddonConfig: %v", err)
	}
	if err := s.SetAddonConfig("cfg1", "api_key", "updated"); err != nil {
		t.Fatalf("SetAddonConfig (update): %v", err)
	}

	cfg, err := s.GetAddonConfig("cfg1")
	if err != nil {
		t.Fatalf("GetAddonConfig: %v", err)
	}
	if cfg["api_key"] != "updated" {
		t.Errorf("got %q, want updated", cfg["api_key"])
	}
}

func TestRecordAddonHealth_RollsUpIncrementalAverage(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpsertAddon(testAddon("h1", 1, true)); err != nil {
		t.Fatalf("UpsertAddon: %v", err)
	}

	first := models.AddonHealthRecord{AddonID: "h1", Timestamp: time.Now().UTC(), ResponseTimeMs: 100, Success: true}
	if err := s.RecordAddonHealth(first); err != nil {
		t.Fatalf("RecordAddonHealth: %v", err)
	}
	second := models.AddonHealthRecord{AddonID: "h1", Timestamp: time.Now().UTC(), ResponseTimeMs: 300, Success: false}
	if err := s.RecordAddonHealth(second); err != nil {
		t.Fatalf("RecordAddonHealth: %v", err)
	}

	summary, err := s.GetAddonHealthSummary("h1")
	if err != nil {
		t.Fatalf("GetAddonHealthSummary: %v", err)
	}
	if summary.TotalCalls != 2 {
		t.Errorf("got TotalCalls %d, want 2", summary.TotalCalls)
	}
	if summary.SuccessCalls != 1 {
		t.Errorf("got SuccessCalls %d, want 1", summary.SuccessCalls)
	}
	if summary.AvgResponseTimeMs != 200 {
		t.Errorf("got AvgResponseTimeMs %v, want 200", summary.AvgResponseTimeMs)
	}
	if summary.LastFailureAt == nil {
		t.Errorf("expected LastFailureAt to be set")
	}
}
