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
	unsplashBaseURL    = "https://api.unsplash.com"
	unsplashMaxPerPage = 30
)

type unsplashSearchResponse struct {
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
	Results    []json.RawMessage `json:"results"`
}

// UnsplashProvider implements the Provider interface for Unsplash. Unsplash
// serves photos only.
type UnsplashProvider struct {
	client *keyedClient
	logger *utils.Logger
}

// NewUnsplashProvider creates a new Unsplash provider.
func NewUnsplashProvider(rotator Rotator, opts ProviderOptions, logger *utils.Logger) *UnsplashProvider {
	logger = logger.Named("unsplash_provider")
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = unsplashBaseURL
	}

	apply := func(req *resty.Request, key string) {
		req.SetHeader("Authorization", "Client-ID "+key)
		req.SetHeader("Accept-Version", "v1")
	}

	return &UnsplashProvider{
		client: newKeyedClient(models.SourceUnsplash, baseURL, rotator, apply, opts, logger),
		logger: logger,
	}
}

// Name implements Provider.
func (p *UnsplashProvider) Name() models.Source {
	return models.SourceUnsplash
}

// Subtypes implements Provider.
func (p *UnsplashProvider) Subtypes() []Subtype {
	return []Subtype{SubtypeImages}
}

// Count implements Provider. Videos always count zero without an upstream call.
func (p *UnsplashProvider) Count(ctx context.Context, query string, subtype Subtype) (int, error) {
	if subtype == SubtypeVideos {
		return 0, nil
	}
	resp, err := p.search(ctx, query, subtype, 1, 1)
	if err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// Search implements Provider.
func (p *UnsplashProvider) Search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*models.ProviderPage, error) {
	page = clampPage(page)
	perPage = clampPerPage(perPage, 1, unsplashMaxPerPage)
	p.logger.Debug("Searching Unsplash", "query", query, "page", page, "perPage", perPage)

	resp, err := p.search(ctx, query, subtype, page, perPage)
	if err != nil {
		return nil, err
	}

	items := resp.Results
	if items == nil {
		items = []json.RawMessage{}
	}

	return &models.ProviderPage{
		Page:    page,
		PerPage: perPage,
		Total:   resp.Total,
		Items:   items,
	}, nil
}

func (p *UnsplashProvider) search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*unsplashSearchResponse, error) {
	if subtype != SubtypeImages {
		return nil, fmt.Errorf("unsplash %s: %w", subtype, ErrUnsupportedSubtype)
	}

	var resp unsplashSearchResponse
	err := p.client.get(ctx, "/search/photos", map[string]string{
		"query":    query,
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
