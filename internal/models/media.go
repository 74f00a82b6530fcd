// Package models contains the data structures used throughout the application.
package models

import (
	"encoding/json"
	"fmt"
)

// Source identifies the upstream provider a media item came from.
type Source string

const (
	SourcePexels   Source = "pexels"
	SourceUnsplash Source = "unsplash"
	SourcePixabay  Source = "pixabay"
)

// Sources lists every supported provider in a stable order.
var Sources = []Source{SourcePexels, SourceUnsplash, SourcePixabay}

// MediaKind is the kind of a single media item.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// MediaType is the plural media category used in queries.
type MediaType string

const (
	MediaTypeImages MediaType = "images"
	MediaTypeVideos MediaType = "videos"
)

// ParseMediaType accepts "images" or "videos". An empty string means images.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case "", MediaTypeImages:
		return MediaTypeImages, nil
	case MediaTypeVideos:
		return MediaTypeVideos, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// Kind returns the item kind for the media type.
func (t MediaType) Kind() MediaKind {
	if t == MediaTypeVideos {
		return KindVideo
	}
	return KindImage
}

// MediaItem is the canonical, provider-independent shape of one search hit.
// URL and PreviewURL are always non-empty and Tags is never nil.
type MediaItem struct {
	// ID is unique only within Source; see Key.
	ID              string    `json:"id"`
	Source          Source    `json:"source"`
	Type            MediaKind `json:"type"`
	URL             string    `json:"url"`
	PreviewURL      string    `json:"previewURL"`
	Tags            []string  `json:"tags"`
	// Width and Height are positive when upstream reports them; zero means unknown.
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Photographer    string `json:"photographer,omitempty"`
	PhotographerURL string `json:"photographerUrl,omitempty"`
}

// Key returns the globally unique (source, id) identity of the item.
func (m MediaItem) Key() string {
	return string(m.Source) + ":" + m.ID
}

// ProviderPage is one page of provider-native search results.
type ProviderPage struct {
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
	Total   int               `json:"total"`
	Items   []json.RawMessage `json:"items"`
}

// FailureReason classifies why a provider call contributed nothing.
type FailureReason string

const (
	ReasonExhausted     FailureReason = "credentials_exhausted"
	ReasonUpstream      FailureReason = "upstream_error"
	ReasonNormalization FailureReason = "normalization_failed"
	ReasonCanceled      FailureReason = "canceled"
)

// ProviderFailure records one failed call inside an aggregate operation.
type ProviderFailure struct {
	Provider Source        `json:"provider"`
	Subtype  string        `json:"subtype"`
	Reason   FailureReason `json:"reason"`
}

// SearchResult is the merged, normalized result of one aggregate page.
type SearchResult struct {
	Query     string            `json:"query"`
	MediaType MediaType         `json:"mediaType"`
	Page      int               `json:"page"`
	PerPage   int               `json:"perPage"`
	Items     []MediaItem       `json:"items"`
	Degraded  bool              `json:"degraded"`
	Failures  []ProviderFailure `json:"failures,omitempty"`
}
