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
	pexelsBaseURL    = "https://api.pexels.com"
	pexelsMaxPerPage = 80
)

type pexelsSearchResponse struct {
	Page         int               `json:"page"`
	PerPage      int               `json:"per_page"`
	TotalResults int               `json:"total_results"`
	Photos       []json.RawMessage `json:"photos"`
	Videos       []json.RawMessage `json:"videos"`
}

// PexelsProvider implements the Provider interface for Pexels photos and videos.
type PexelsProvider struct {
	client *keyedClient
	logger *utils.Logger
}

// NewPexelsProvider creates a new Pexels provider.
func NewPexelsProvider(rotator Rotator, opts ProviderOptions, logger *utils.Logger) *PexelsProvider {
	logger = logger.Named("pexels_provider")
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = pexelsBaseURL
	}

	apply := func(req *resty.Request, key string) {
		req.SetHeader("Authorization", key)
	}

	return &PexelsProvider{
		client: newKeyedClient(models.SourcePexels, baseURL, rotator, apply, opts, logger),
		logger: logger,
	}
}

// Name implements Provider.
func (p *PexelsProvider) Name() models.Source {
	return models.SourcePexels
}

// Subtypes implements Provider.
func (p *PexelsProvider) Subtypes() []Subtype {
	return []Subtype{SubtypeImages, SubtypeVideos}
}

// Count implements Provider.
func (p *PexelsProvider) Count(ctx context.Context, query string, subtype Subtype) (int, error) {
	resp, err := p.search(ctx, query, subtype, 1, 1)
	if err != nil {
		return 0, err
	}
	return resp.TotalResults, nil
}

// Search implements Provider.
func (p *PexelsProvider) Search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*models.ProviderPage, error) {
	page = clampPage(page)
	perPage = clampPerPage(perPage, 1, pexelsMaxPerPage)
	p.logger.Debug("Searching Pexels", "query", query, "subtype", string(subtype), "page", page, "perPage", perPage)

	resp, err := p.search(ctx, query, subtype, page, perPage)
	if err != nil {
		return nil, err
	}

	items := resp.Photos
	if subtype == SubtypeVideos {
		items = resp.Videos
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	return &models.ProviderPage{
		Page:    page,
		PerPage: perPage,
		Total:   resp.TotalResults,
		Items:   items,
	}, nil
}

func (p *PexelsProvider) search(ctx context.Context, query string, subtype Subtype, page, perPage int) (*pexelsSearchResponse, error) {
	var path string
	switch subtype {
	case SubtypeImages:
		path = "/v1/search"
	case SubtypeVideos:
		path = "/videos/search"
	default:
		return nil, fmt.Errorf("pexels %s: %w", subtype, ErrUnsupportedSubtype)
	}

	var resp pexelsSearchResponse
	err := p.client.get(ctx, path, map[string]string{
		"query":    query,
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
