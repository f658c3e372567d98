package storage

import (
	"testing"

	"github.com/streamgo/streamgo/internal/models"
)

func seedSeries(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.AddToLibrary(models.MediaItem{ID: id, Title: id, Type: models.MediaSeries}); err != nil {
		t.Fatalf("AddToLibrary(%s): %v", id, err)
	}
}

func TestGetEpisodesForSeries_OrderedBySeasonThenNumber(t *testing.T) {
	s := openTestStore(t)
	seedSeries(t, s, "show1")

	episodes := []models.Episode{
		{ID: "e1x2", SeriesID: "show1", Season: 1, Number: 2, Title: "Two"},
		{ID: "e2x1", SeriesID: "show1", Season: 2, Number: 1, Title: "Season Two Opener"},
		{ID: "e1x1", SeriesID: "show1", Season: 1, Number: 1, Title: "Pilot"},
	}
	for _, e := range episodes {
		if err := s.UpsertEpisode(e); err != nil {
			t.Fatalf("UpsertEpisode: %v", err)
		}
	}

	got, err := s.GetEpisodesForSeries("show1")
	if err != nil {
		t.Fatalf("GetEpisodesForSeries: %v", err)
	}
	wantIDs := []string{"e1x1", "e1x2", "e2x1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d episodes, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestUpdateEpisodeProgress_UnknownIDIsNotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateEpisodeProgress("missing", 100, false); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteEpisodesForSeries_RemovesOnlyThatSeries(t *testing.T) {
	s := openTestStore(t)
	seedSeries(t, s, "a")
	seedSeries(t, s, "b")

	if err := s.UpsertEpisode(models.Episode{ID: "a1", SeriesID: "a", Season: 1, Number: 1}); err != nil {
		t.Fatalf("UpsertEpisode: %v", err)
	}
	if err := s.UpsertEpisode(models.Episode{ID: "b1", SeriesID: "b", Season: 1, Number: 1}); err != nil {
		t.Fatalf("UpsertEpisode: %v", err)
	}

	if err := s.DeleteEpisodesForSeries("a"); err != nil {
		t.Fatalf("DeleteEpisodesForSeries: %v", err)
	}

	aEpisodes, err := s.GetEpisodesForSeries("a")
	if err != nil {
		t.Fatalf("GetEpisodesForSeries(a): %v", err)
	}
	if len(aEpisodes) != 0 {
		t.Errorf("got %d episodes for series a, want 0", len(aEpisodes))
	}

	bEpisodes, err := s.GetEpisodesForSeries("b")
	if err != nil {
		t.Fatalf("GetEpisodesForSeries(b): %v", err)
	}
	if len(bEpisodes) != 1 {
		t.Errorf("got %d episodes for series b, want 1", len(bEpisodes))
	}
}
