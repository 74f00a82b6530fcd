// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/services/feed"
	"norelock.dev/fetchx/backend/internal/services/media"
	"norelock.dev/fetchx/backend/internal/utils"
)

// SessionHeader carries the browsing session used to supersede stale loads.
const SessionHeader = "X-Session-ID"

// Counter summarizes usable result counts. *media.Aggregator implements it.
type Counter interface {
	Counts(ctx context.Context, query string, mediaType models.MediaType) (*models.CountSummary, error)
}

// ProviderSource looks up a configured provider. *media.Aggregator implements it.
type ProviderSource interface {
	Provider(source models.Source) (media.Provider, bool)
}

// PageLoader loads aggregate pages per session. *feed.Orchestrator implements it.
type PageLoader interface {
	Load(ctx context.Context, sessionID string, req feed.PageRequest) (*models.SearchResult, error)
}

// MetadataResponse is one provider-native page.
type MetadataResponse struct {
	Provider models.Source     `json:"provider"`
	Type     string            `json:"type"`
	Query    string            `json:"query"`
	Page     int               `json:"page"`
	PerPage  int               `json:"perPage"`
	Total    int               `json:"total"`
	Items    []json.RawMessage `json:"items"`
}

type searchParams struct {
	Query string `query:"query" validate:"required,max=200"`
	Type  string `query:"type" validate:"omitempty,media_type"`
}

type metadataParams struct {
	Query   string `query:"query" validate:"required,max=200"`
	Page    int    `query:"page" validate:"min=1"`
	PerPage int    `query:"perPage" validate:"min=1,max=200"`
}

type mediaParams struct {
	Query   string `query:"query" validate:"required,max=200"`
	Type    string `query:"type" validate:"omitempty,media_type"`
	Page    int    `query:"page" validate:"min=1"`
	PerPage int    `query:"perPage" validate:"min=0,max=80"`
}

// MediaHandler handles HTTP requests related to media search.
type MediaHandler struct {
	counter   Counter
	providers ProviderSource
	loader    PageLoader
	logger    *utils.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(counter Counter, providers ProviderSource, loader PageLoader, logger *utils.Logger) *MediaHandler {
	return &MediaHandler{
		counter:   counter,
		providers: providers,
		loader:    loader,
		logger:    logger.Named("media_handler"),
	}
}

// Search handles requests for the usable result count of a query.
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := searchParams{
		Query: strings.TrimSpace(q.Get("query")),
		Type:  q.Get("type"),
	}
	if err := utils.Validate(params); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}
	mediaType, _ := models.ParseMediaType(params.Type)

	summary, err := h.counter.Counts(r.Context(), params.Query, mediaType)
	if err != nil {
		h.logger.Error("Failed to fetch search counts", err, "query", params.Query, "type", string(mediaType))
		utils.RespondWithAppError(w, err, "Failed to fetch search counts")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// Metadata handles requests for one provider-native page.
func (h *MediaHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	source := models.Source(chi.URLParam(r, "provider"))
	subtype := media.Subtype(chi.URLParam(r, "type"))

	provider, ok := h.providers.Provider(source)
	if !ok || !lo.Contains(provider.Subtypes(), subtype) {
		utils.RespondWithError(w, http.StatusNotFound, "Unknown provider or media type")
		return
	}

	page, err := utils.ParseIntParam(r, "page", 1)
	if err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}
	perPage, err := utils.ParseIntParam(r, "perPage", defaultMetadataPerPage(source, subtype))
	if err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}

	params := metadataParams{
		Query:   strings.TrimSpace(r.URL.Query().Get("query")),
		Page:    page,
		PerPage: perPage,
	}
	if err := utils.Validate(params); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}

	result, err := provider.Search(r.Context(), params.Query, subtype, params.Page, params.PerPage)
	if err != nil {
		message := fmt.Sprintf("Failed to fetch %s %s", displayName(source), metadataLabel(source, subtype))
		h.logger.Error(message, err, "query", params.Query, "page", params.Page)
		utils.RespondWithError(w, http.StatusInternalServerError, message)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, MetadataResponse{
		Provider: source,
		Type:     metadataLabel(source, subtype),
		Query:    params.Query,
		Page:     result.Page,
		PerPage:  result.PerPage,
		Total:    result.Total,
		Items:    result.Items,
	})
}

// Media handles requests for one normalized aggregate page. A newer request
// carrying the same session header supersedes this one with 409.
func (h *MediaHandler) Media(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParseIntParam(r, "page", 1)
	if err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}
	perPage, err := utils.ParseIntParam(r, "perPage", 0)
	if err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}

	q := r.URL.Query()
	params := mediaParams{
		Query:   strings.TrimSpace(q.Get("query")),
		Type:    q.Get("type"),
		Page:    page,
		PerPage: perPage,
	}
	if err := utils.Validate(params); err != nil {
		utils.RespondWithValidationError(w, err)
		return
	}
	mediaType, _ := models.ParseMediaType(params.Type)

	sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sessionID == "" {
		sessionID = feed.NewSessionID()
	}
	w.Header().Set(SessionHeader, sessionID)

	result, err := h.loader.Load(r.Context(), sessionID, feed.PageRequest{
		Query:     params.Query,
		MediaType: mediaType,
		Page:      params.Page,
		PerPage:   params.PerPage,
	})
	if errors.Is(err, feed.ErrSuperseded) {
		utils.RespondWithAppError(w, utils.ConflictError("Request superseded by a newer one", err), "")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load media", err, "query", params.Query, "page", params.Page)
		utils.RespondWithAppError(w, err, "Failed to load media")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

// defaultMetadataPerPage mirrors the page sizes the frontend was built against.
func defaultMetadataPerPage(source models.Source, subtype media.Subtype) int {
	switch {
	case source == models.SourcePexels && subtype == media.SubtypeVideos:
		return 30
	case source == models.SourceUnsplash:
		return 30
	case source == models.SourcePixabay && subtype == media.SubtypeVideos:
		return 50
	default:
		return 80
	}
}

// metadataLabel names the page contents; provider "images" are photos.
func metadataLabel(source models.Source, subtype media.Subtype) string {
	if subtype == media.SubtypeImages && source != models.SourcePixabay {
		return string(media.SubtypePhotos)
	}
	return string(subtype)
}

func displayName(source models.Source) string {
	switch source {
	case models.SourcePexels:
		return "Pexels"
	case models.SourceUnsplash:
		return "Unsplash"
	case models.SourcePixabay:
		return "Pixabay"
	}
	return string(source)
}
