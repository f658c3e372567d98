package streamproxy

import "testing"

func TestParseRange_NoHeaderReturnsWholeFile(t *testing.T) {
	r, err := parseRange("", 1000)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if r.start != 0 || r.end != 999 {
		t.Errorf("got [%d,%d], want [0,999]", r.start, r.end)
	}
}

func TestParseRange_SimpleRange(t *testing.T) {
	r, err := parseRange("bytes=100-199", 1000)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if r.start != 100 || r.end != 199 {
		t.Errorf("got [%d,%d], want [100,199]", r.start, r.end)
	}
}

func TestParseRange_OpenEnded(t *testing.T) {
	r, err := parseRange("bytes=900-", 1000)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if r.start != 900 || r.end != 999 {
		t.Errorf("got [%d,%d], want [900,999]", r.start, r.end)
	}
}

func TestParseRange_Suffix(t *testing.T) {
	r, err := parseRange("bytes=-100", 1000)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if r.start != 900 || r.end != 999 {
		t.Errorf("got [%d,%d], want [900,999]", r.start, r.end)
	}
}

func TestParseRange_SuffixLargerThanFile(t *testing.T) {
	r, err := parseRange("bytes=-5000", 1000)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if r.start != 0 || r.end != 999 {
		t.Errorf("got [%d,%d], want [0,999]", r.start, r.end)
	}
}

func TestParseRange_EndEqualsFileSizeIs416(t *testing.T) {
	_, err := parseRange("bytes=0-1000", 1000)
	if err != errRangeNotSatisfiable {
		t.Errorf("expected errRangeNotSatisfiable, got %v", err)
	}
}

func TestParseRange_StartGreaterThanEndIs416(t *testing.T) {
	_, err := parseRange("bytes=500-100", 1000)
	if err != errRangeNotSatisfiable {
		t.Errorf("expected errRangeNotSatisfiable, got %v", err)
	}
}

func TestParseRange_StartBeyondFileSizeIs416(t *testing.T) {
	_, err := parseRange("bytes=1000-1001", 1000)
	if err != errRangeNotSatisfiable {
		t.Errorf("expected errRangeNotSatisfiable, got %v", err)
	}
}

func TestParseRange_MalformedHeaderIs416(t *testing.T) {
	_, err := parseRange("bytes=abc-def", 1000)
	if err != errRangeNotSatisfiable {
		t.Errorf("expected errRangeNotSatisfiable, got %v", err)
	}
}

func TestContentTypeForExt(t *testing.T) {
	cases := map[string]string{
		".mp4":  "video/mp4",
		".MKV":  "video/x-matroska",
		".webm": "video/webm",
		".avi":  "video/x-msvideo",
		".mov":  "video/quicktime",
		".xyz":  "application/octet-stream",
	}
	for ext, want := range cases {
		if got := contentTypeForExt(ext); got != want {
			t.Errorf("contentTypeForExt(%q) = %q, want %q", ext, got, want)
		}
	}
}
