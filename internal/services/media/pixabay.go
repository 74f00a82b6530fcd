package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

const (
	pixabayBaseURL    = "https://pixabay.com"
	pixabayMinPerPage = 3
	pixabayMaxPerPage = 200
)

type pixabaySearchResponse struct {
	Total     int               `json:"total"`
	TotalHits int               `json:"totalHits"`
	Hits      []json.RawMessage `json:"hits"`
}

// PixabayProvider implements the Provider interface for Pixabay. Images are
// served through three image_type variants; videos have their own endpoint.
type PixabayProvider struct {
	client *keyedClient
	logger *utils.Logger
}

// NewPixabayProvider creates a new Pixabay provider.
func NewPixabayProvider(rotator Rotator, opts ProviderOptions, logger *utils.Logger) *PixabayProvider {
	logger = logger.Named("pixabay_provider")
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = pixabayBaseURL
	}

	apply := func(req *resty.Request, key string) {
		req.SetQueryParam("key", key)
	}

	return &PixabayProvider{
		client: newKeyedClient(models.SourcePixabay, baseURL, rotator, apply, opts, logger),
		logger: logger,
	}
}

// Name implements Provider.
func (p *PixabayProvider) Name() models.Source {
	return models.SourcePixabay
}

// Subtypes implements Provider.
func (p *PixabayProvider) Subtypes() []Subtype {
	return []Subtype{SubtypePhotos, SubtypeIllustrations, SubtypeVectors, SubtypeVideos}
}

// Count implements Provider. The images subtype is counted as photos.
func (p *PixabayProvider) Count(ctx context.Context, query string, subtype Subtype) (int, error) {
	if subtype == SubtypeImages {
		subtype = SubtypePhotos
	}
	resp, err := p.search(ctx, query, subtype, 1, pixabayMinPerPage)
	if err != nil {
		return 0, err
	}
	return resp.TotalHits, nil
}

// Search implements Provider.
func (p *PixabayProvider) Search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*models.ProviderPage, error) {
	page = clampPage(page)
	perPage = clampPerPage(perPage, pixabayMinPerPage, pixabayMaxPerPage)
	p.logger.Debug("Searching Pixabay", "query", query, "subtype", string(subtype), "page", page, "perPage", perPage)

	resp, err := p.search(ctx, query, subtype, page, perPage)
	if err != nil {
		return nil, err
	}

	items := resp.Hits
	if items == nil {
		items = []json.RawMessage{}
	}

	return &models.ProviderPage{
		Page:    page,
		PerPage: perPage,
		Total:   resp.TotalHits,
		Items:   items,
	}, nil
}

func (p *PixabayProvider) search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*pixabaySearchResponse, error) {
	params := map[string]string{
		"q":        query,
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	}

	path := "/api/"
	switch subtype {
	case SubtypeImages, SubtypePhotos:
		params["image_type"] = "photo"
	case SubtypeIllustrations:
		params["image_type"] = "illustration"
	case SubtypeVectors:
		params["image_type"] = "vector"
	case SubtypeVideos:
		path = "/api/videos/"
	default:
		return nil, fmt.Errorf("pixabay %s: %w", subtype, ErrUnsupportedSubtype)
	}

	var resp pixabaySearchResponse
	if err := p.client.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
