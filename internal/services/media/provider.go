// Package media talks to the upstream stock-media providers and merges their
// results into one canonical stream.
package media

import (
	"context"

	"norelock.dev/fetchx/backend/internal/models"
)

// Subtype is a provider-level endpoint variant. Pixabay splits images into
// photos, illustrations and vectors; the other providers use images/videos.
type Subtype string

const (
	SubtypeImages        Subtype = "images"
	SubtypeVideos        Subtype = "videos"
	SubtypePhotos        Subtype = "photos"
	SubtypeIllustrations Subtype = "illustrations"
	SubtypeVectors       Subtype = "vectors"
)

// MediaType returns the aggregate media type the subtype contributes to.
func (s Subtype) MediaType() models.MediaType {
	if s == SubtypeVideos {
		return models.MediaTypeVideos
	}
	return models.MediaTypeImages
}

// Kind returns the item kind produced by the subtype.
func (s Subtype) Kind() models.MediaKind {
	return s.MediaType().Kind()
}

// Provider defines the interface for upstream stock-media providers.
type Provider interface {
	// Name returns the provider identifier.
	Name() models.Source

	// Subtypes lists the endpoint variants the provider serves, in fan-out order.
	Subtypes() []Subtype

	// Count returns the provider-reported total for query.
	Count(ctx context.Context, query string, subtype Subtype) (int, error)

	// Search returns one page of provider-native items.
	Search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*models.ProviderPage, error)
}

func clampPage(page int) int {
	return max(page, 1)
}

func clampPerPage(perPage, lo, hi int) int {
	return min(max(perPage, lo), hi)
}
