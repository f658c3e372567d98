package torrentsession

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestIsVideoPath(t *testing.T) {
	cases := map[string]bool{
		"movie.mp4":        true,
		"Show.S01E01.mkv":  true,
		"clip.webm":        true,
		"readme.txt":       false,
		"cover.jpg":        false,
		"archive.tar.gz":   false,
		"NoExtension":      false,
		"odd.3GP":          true,
	}
	for path, want := range cases {
		if got := IsVideoPath(path); got != want {
			t.Errorf("IsVideoPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSession_RecordStreamPersistsToDotSessionFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	fileIndex := 2
	s.recordStream("deadbeef", "magnet:?xt=urn:btih:deadbeef", &fileIndex)

	raw, err := os.ReadFile(filepath.Join(dir, sessionFileName))
	if err != nil {
		t.Fatalf("read .session: %v", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		t.Fatalf("unmarshal .session: %v", err)
	}
	if len(sf.Streams) != 1 || sf.Streams[0].Source != "magnet:?xt=urn:btih:deadbeef" {
		t.Fatalf("got %+v, want one recorded stream", sf.Streams)
	}
	if sf.Streams[0].FileIndex == nil || *sf.Streams[0].FileIndex != 2 {
		t.Fatalf("got %+v, want file_index=2", sf.Streams[0])
	}
}

func TestSession_ForgetStreamRemovesFromDotSessionFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.recordStream("deadbeef", "magnet:?xt=urn:btih:deadbeef", nil)
	s.forgetStream("deadbeef")

	raw, err := os.ReadFile(filepath.Join(dir, sessionFileName))
	if err != nil {
		t.Fatalf("read .session: %v", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		t.Fatalf("unmarshal .session: %v", err)
	}
	if len(sf.Streams) != 0 {
		t.Errorf("got %+v, want no recorded streams after forget", sf.Streams)
	}
}
