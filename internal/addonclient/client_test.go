package addonclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RejectsNonHTTPScheme(t *testing.T) {
	cases := []string{"ftp://example.com", "not-a-url", "", "example.com"}
	for _, u := range cases {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error, got nil", u)
		}
	}
}

func TestFetchManifest_ValidatesRequiredFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"","name":"x","version":"1.0.0","resources":["catalog"]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.FetchManifest(context.Background())
	if err == nil {
		t.Fatal("expected validation error for empty id")
	}
	var ae *Error
	if !asError(err, &ae) || ae.Kind != KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestFetchManifest_RejectsEmptyResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"a","name":"b","version":"1.0.0","resources":[]}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.FetchManifest(context.Background())
	var ae *Error
	if !asError(err, &ae) || ae.Kind != KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestFetchManifest_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manifest.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"id":"com.example.addon","name":"Example","version":"1.0.0",
			"resources":["catalog","stream"],
			"behaviorHints":{"adult":false,"p2p":true}
		}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	m, err := c.FetchManifest(context.Background())
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.ID != "com.example.addon" || !m.BehaviorHints.P2P {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestFetchCatalog_NonSuccessStatusIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.FetchCatalog(context.Background(), "movie", "top", nil)
	var ae *Error
	if !asError(err, &ae) || ae.Kind != KindHTTP || ae.Status != 500 {
		t.Fatalf("expected KindHTTP/500, got %v", err)
	}
}

func TestFetchCatalog_ExtraParamsPreserveOrder(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"metas":[]}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.FetchCatalog(context.Background(), "movie", "top", []ExtraParam{
		{Key: "genre", Value: "action"},
		{Key: "skip", Value: "0"},
	})
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if gotQuery != "genre=action&skip=0" {
		t.Fatalf("expected query order preserved, got %q", gotQuery)
	}
}

func TestFetchStreams_MalformedJSONIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.FetchStreams(context.Background(), "movie", "tt0111161")
	var ae *Error
	if !asError(err, &ae) || ae.Kind != KindParse {
		t.Fatalf("expected KindParse, got %v", err)
	}
}

// asError is a small helper so tests can assert on the concrete *Error type
// returned by every Client operation without importing errors.As noise at
// every call site.
func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
