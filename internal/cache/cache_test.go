package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/streamgo/streamgo/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_MissOnAbsentKey(t *testing.T) {
	c := New(openTestStore(t).DB())

	_, ok, err := c.Get(NamespaceMetadata, "nope", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected miss for absent key")
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	c := New(openTestStore(t).DB())

	if err := c.Set(NamespaceMetadata, "k1", "", []byte("hello"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := c.Get(NamespaceMetadata, "k1", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if string(v) != "hello" {
		t.Errorf("value = %q, want %q", v, "hello")
	}
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	c := New(openTestStore(t).DB())

	if err := c.Set(NamespaceMetadata, "k1", "", []byte("hello"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, ok, err := c.Get(NamespaceMetadata, "k1", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected expired entry to be a miss")
	}
}

func TestAddonResponseCache_CompositeKey(t *testing.T) {
	c := New(openTestStore(t).DB())

	if err := c.Set(NamespaceAddonResponse, "catalog:movie:top", "addon-a", []byte("a-data"), time.Hour); err != nil {
		t.Fatalf("Set addon-a: %v", err)
	}
	if err := c.Set(NamespaceAddonResponse, "catalog:movie:top", "addon-b", []byte("b-data"), time.Hour); err != nil {
		t.Fatalf("Set addon-b: %v", err)
	}

	va, ok, err := c.Get(NamespaceAddonResponse, "catalog:movie:top", "addon-a")
	if err != nil || !ok {
		t.Fatalf("Get addon-a: ok=%v err=%v", ok, err)
	}
	if string(va) != "a-data" {
		t.Errorf("addon-a value = %q", va)
	}

	vb, ok, err := c.Get(NamespaceAddonResponse, "catalog:movie:top", "addon-b")
	if err != nil || !ok {
		t.Fatalf("Get addon-b: ok=%v err=%v", ok, err)
	}
	if string(vb) != "b-data" {
		t.Errorf("addon-b value = %q", vb)
	}
}

func TestClearAddon_OnlyRemovesThatAddon(t *testing.T) {
	c := New(openTestStore(t).DB())

	c.Set(NamespaceAddonResponse, "k", "addon-a", []byte("a"), time.Hour)
	c.Set(NamespaceAddonResponse, "k", "addon-b", []byte("b"), time.Hour)

	if err := c.ClearAddon("addon-a"); err != nil {
		t.Fatalf("ClearAddon: %v", err)
	}

	if _, ok, _ := c.Get(NamespaceAddonResponse, "k", "addon-a"); ok {
		t.Error("addon-a entry should be gone")
	}
	if _, ok, _ := c.Get(NamespaceAddonResponse, "k", "addon-b"); !ok {
		t.Error("addon-b entry should survive")
	}
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	c := New(openTestStore(t).DB())

	c.Set(NamespaceMetadata, "fresh", "", []byte("x"), time.Hour)
	c.Set(NamespaceMetadata, "stale", "", []byte("y"), time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	n, err := c.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d rows, want 1", n)
	}

	if _, ok, _ := c.Get(NamespaceMetadata, "fresh", ""); !ok {
		t.Error("fresh entry should survive sweep")
	}
}

func TestStats_CountsBothNamespaces(t *testing.T) {
	c := New(openTestStore(t).DB())

	c.Set(NamespaceMetadata, "m1", "", []byte("x"), time.Hour)
	c.Set(NamespaceAddonResponse, "a1", "addon-a", []byte("y"), time.Hour)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Metadata.Total != 1 || stats.Metadata.Valid != 1 || stats.Metadata.Expired != 0 {
		t.Errorf("Metadata = %+v, want total=1 valid=1 expired=0", stats.Metadata)
	}
	if stats.AddonResponse.Total != 1 || stats.AddonResponse.Valid != 1 || stats.AddonResponse.Expired != 0 {
		t.Errorf("AddonResponse = %+v, want total=1 valid=1 expired=0", stats.AddonResponse)
	}
}

func TestStats_SeparatesExpiredFromValid(t *testing.T) {
	c := New(openTestStore(t).DB())

	c.Set(NamespaceMetadata, "fresh", "", []byte("x"), time.Hour)
	c.Set(NamespaceMetadata, "stale", "", []byte("y"), time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Metadata.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Metadata.Total)
	}
	if stats.Metadata.Valid != 1 {
		t.Errorf("Valid = %d, want 1", stats.Metadata.Valid)
	}
	if stats.Metadata.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Metadata.Expired)
	}
}
