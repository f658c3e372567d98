package addonclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamgo/streamgo/pkg/httpclient"
)

const userAgent = "streamgo/1.0"

// defaultTimeout bounds a Client's own http.Client, enforced regardless of
// whatever deadline the caller's context carries -- a slow or hung addon
// can't outlive this even if the aggregator's own per-task timeout were
// ever raised or omitted by a caller.
const defaultTimeout = 10 * time.Second

// Client fetches manifest, catalog, and stream resources from a single
// addon's base URL. A fresh Client is constructed per addon per call by the
// aggregator (spec §4.4 step 3: "construct a fresh client against the addon
// URL").
type Client struct {
	baseURL string
	http    *http.Client
}

// New validates baseURL and returns a Client bound to it. baseURL must be an
// absolute http(s) URL; a trailing slash is stripped.
func New(baseURL string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, invalidURL(fmt.Sprintf("%q is not an absolute http(s) URL", baseURL))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(defaultTimeout),
	}, nil
}

// FetchManifest fetches and validates the addon's manifest.json.
func (c *Client) FetchManifest(ctx context.Context) (*Manifest, error) {
	data, err := c.get(ctx, "/manifest.json")
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, parseErr(err.Error())
	}

	if err := validateManifest(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// validateManifest enforces spec §4.1's manifest validation rules.
func validateManifest(m *Manifest) error {
	if m.ID == "" || m.Name == "" || m.Version == "" {
		return validationErr("id, name, and version must be non-empty")
	}
	if len(m.Resources) == 0 {
		return validationErr("resources must be non-empty")
	}
	return nil
}

// FetchCatalog fetches B/catalog/{type}/{id}.json, optionally with extra
// query parameters. Insertion order of extra is preserved on the wire.
func (c *Client) FetchCatalog(ctx context.Context, mediaType, catalogID string, extra []ExtraParam) (*CatalogResponse, error) {
	path := fmt.Sprintf("/catalog/%s/%s.json", mediaType, catalogID)
	if len(extra) > 0 {
		parts := make([]string, 0, len(extra))
		for _, e := range extra {
			parts = append(parts, url.QueryEscape(e.Key)+"="+url.QueryEscape(e.Value))
		}
		path += "?" + strings.Join(parts, "&")
	}

	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp CatalogResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, parseErr(err.Error())
	}
	return &resp, nil
}

// FetchStreams fetches B/stream/{type}/{id}.json.
func (c *Client) FetchStreams(ctx context.Context, mediaType, mediaID string) (*StreamResponse, error) {
	path := fmt.Sprintf("/stream/%s/%s.json", mediaType, mediaID)

	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp StreamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, parseErr(err.Error())
	}
	return &resp, nil
}

// ExtraParam is one key=value extra query parameter for a catalog request.
type ExtraParam struct {
	Key   string
	Value string
}

// get performs a GET against the addon's base URL and returns the response
// body, translating transport and status failures into the taxonomy in
// errors.go.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, invalidURL(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(err.Error())
		}
		return nil, httpErr(0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httpErr(resp.StatusCode, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpErr(resp.StatusCode, string(body))
	}

	return body, nil
}
