// Package addonclient implements the addon protocol client (spec §4.1): a
// uniform HTTP client for third-party content providers exposing
// manifest.json, catalog/{type}/{id}.json, and stream/{type}/{id}.json.
//
// The wire types here match the addon protocol field-for-field, including
// the exact camelCase casing required for cross-ecosystem compatibility
// (spec §6.1). They are intentionally separate from models.AddonManifestDoc,
// which is the storage-side projection of an installed addon.
package addonclient

// MediaType enumerates the media kinds the addon protocol recognizes.
type MediaType string

const (
	TypeMovie   MediaType = "movie"
	TypeSeries  MediaType = "series"
	TypeChannel MediaType = "channel"
	TypeTV      MediaType = "tv"
)

// ResourceType enumerates the resource kinds a manifest can advertise.
type ResourceType string

const (
	ResourceCatalog   ResourceType = "catalog"
	ResourceStream    ResourceType = "stream"
	ResourceMeta      ResourceType = "meta"
	ResourceSubtitles ResourceType = "subtitles"
)

// BehaviorHints are manifest-level capability flags.
type BehaviorHints struct {
	Adult bool `json:"adult"`
	P2P   bool `json:"p2p"`
}

// ExtraField describes one optional catalog query parameter.
type ExtraField struct {
	Name         string   `json:"name"`
	IsRequired   bool     `json:"isRequired"`
	Options      []string `json:"options,omitempty"`
	OptionsLimit int      `json:"optionsLimit,omitempty"`
}

// CatalogDescriptor describes one catalog a manifest exposes.
type CatalogDescriptor struct {
	Type  string       `json:"type"`
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Extra []ExtraField `json:"extra,omitempty"`
}

// Manifest is the document returned by B/manifest.json.
type Manifest struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Version       string              `json:"version"`
	Description   string              `json:"description"`
	Types         []MediaType         `json:"types,omitempty"`
	Catalogs      []CatalogDescriptor `json:"catalogs,omitempty"`
	Resources     []ResourceType      `json:"resources,omitempty"`
	IDPrefixes    []string            `json:"idPrefixes,omitempty"`
	BehaviorHints BehaviorHints       `json:"behaviorHints,omitempty"`
}

// MetaPreview is one entry within a catalog response.
type MetaPreview struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      *string  `json:"poster,omitempty"`
	PosterShape *string  `json:"posterShape,omitempty"`
	Background  *string  `json:"background,omitempty"`
	Logo        *string  `json:"logo,omitempty"`
	Description *string  `json:"description,omitempty"`
	ReleaseInfo *string  `json:"releaseInfo,omitempty"`
	IMDbRating  *float32 `json:"imdbRating,omitempty"`
}

// CatalogResponse is the body returned by B/catalog/{type}/{id}.json.
type CatalogResponse struct {
	Metas []MetaPreview `json:"metas"`
}

// Subtitle is one subtitle track attached to a stream.
type Subtitle struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Lang string `json:"lang"`
}

// StreamBehaviorHints are stream-level playback hints.
type StreamBehaviorHints struct {
	NotWebReady      bool      `json:"notWebReady,omitempty"`
	BingeGroup       *string   `json:"bingeGroup,omitempty"`
	CountryWhitelist *[]string `json:"countryWhitelist,omitempty"`
}

// Stream is one playable source returned by B/stream/{type}/{id}.json.
type Stream struct {
	URL           string               `json:"url,omitempty"`
	InfoHash      *string              `json:"infoHash,omitempty"`
	FileIdx       *int                 `json:"fileIdx,omitempty"`
	Sources       []string             `json:"sources,omitempty"`
	Title         *string              `json:"title,omitempty"`
	Name          *string              `json:"name,omitempty"`
	Description   *string              `json:"description,omitempty"`
	BehaviorHints StreamBehaviorHints  `json:"behaviorHints,omitempty"`
	Subtitles     []Subtitle           `json:"subtitles,omitempty"`
}

// StreamResponse is the body returned by B/stream/{type}/{id}.json.
type StreamResponse struct {
	Streams []Stream `json:"streams"`
}
