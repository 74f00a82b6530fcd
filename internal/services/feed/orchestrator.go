// Package feed drives paged loading on behalf of browsing clients: it
// supersedes stale page loads and streams related media page by page.
package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

// ErrSuperseded is returned by Load when a newer load for the same session
// started before this one finished.
var ErrSuperseded = errors.New("superseded by a newer request")

// Searcher runs one aggregate search page. *media.Aggregator implements it.
type Searcher interface {
	Search(ctx context.Context, query string, mediaType models.MediaType, page, perPage int) (*models.SearchResult, error)
}

// PageRequest asks for one aggregate page.
type PageRequest struct {
	Query     string
	MediaType models.MediaType
	Page      int
	PerPage   int
}

// RelatedRequest asks for media related to a seed item.
type RelatedRequest struct {
	// Query is used when the seed has no tags
	Query     string
	MediaType models.MediaType
	Seed      models.MediaItem
	PerPage   int
	// MaxPages caps the stream; zero means the configured default
	MaxPages int
}

// Batch is one increment of a related-media stream.
type Batch struct {
	Query    string                   `json:"query"`
	Page     int                      `json:"page"`
	Items    []models.MediaItem       `json:"items"`
	Degraded bool                     `json:"degraded"`
	Failures []models.ProviderFailure `json:"failures,omitempty"`
	Done     bool                     `json:"done"`
}

// Options configures an Orchestrator.
type Options struct {
	DefaultPerPage  int
	RelatedMaxPages int
}

type session struct {
	cancel     context.CancelFunc
	superseded atomic.Bool
}

// Orchestrator coordinates page loads per client session.
type Orchestrator struct {
	searcher Searcher
	opts     Options
	logger   *utils.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewOrchestrator creates a new orchestrator over searcher.
func NewOrchestrator(searcher Searcher, opts Options, logger *utils.Logger) *Orchestrator {
	if opts.DefaultPerPage <= 0 {
		opts.DefaultPerPage = 15
	}
	if opts.RelatedMaxPages <= 0 {
		opts.RelatedMaxPages = 5
	}
	return &Orchestrator{
		searcher: searcher,
		opts:     opts,
		logger:   logger.Named("feed_orchestrator"),
		sessions: make(map[string]*session),
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Load runs one aggregate page. Starting a Load for a session cancels the
// session's previous Load, which then returns ErrSuperseded. An empty
// sessionID disables superseding.
func (o *Orchestrator) Load(ctx context.Context, sessionID string, req PageRequest) (*models.SearchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var s *session
	if sessionID != "" {
		s = o.begin(sessionID, cancel)
		defer o.end(sessionID, s)
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = o.opts.DefaultPerPage
	}

	result, err := o.searcher.Search(ctx, req.Query, req.MediaType, req.Page, perPage)
	if s != nil && s.superseded.Load() {
		o.logger.Debug("Load superseded", "session", sessionID, "query", req.Query, "page", req.Page)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// begin registers a load for sessionID, superseding any load in flight.
func (o *Orchestrator) begin(sessionID string, cancel context.CancelFunc) *session {
	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.sessions[sessionID]; ok {
		prev.superseded.Store(true)
		prev.cancel()
	}
	s := &session{cancel: cancel}
	o.sessions[sessionID] = s
	return s
}

// end forgets s unless a newer load already replaced it.
func (o *Orchestrator) end(sessionID string, s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessions[sessionID] == s {
		delete(o.sessions, sessionID)
	}
}

// ActiveSessions returns the number of sessions with a load in flight.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// RelatedQuery derives the related-media query from the seed's first tag,
// falling back to the original query.
func RelatedQuery(seed models.MediaItem, fallback string) string {
	tag, ok := lo.Find(seed.Tags, func(t string) bool {
		return strings.TrimSpace(t) != ""
	})
	if ok {
		return strings.TrimSpace(tag)
	}
	return strings.TrimSpace(fallback)
}

// Related streams related media to emit, one de-duplicated batch per page.
// Items already emitted and the seed itself are never repeated. The stream
// stops at the first empty page, after MaxPages pages, or when ctx is done,
// and ends with a Done batch unless ctx was cancelled or emit failed.
func (o *Orchestrator) Related(ctx context.Context, req RelatedRequest, emit func(Batch) error) error {
	query := RelatedQuery(req.Seed, req.Query)
	if query == "" {
		return utils.BadRequestError("a tagged seed or a query is required", nil)
	}

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = models.MediaTypeImages
		if req.Seed.Type == models.KindVideo {
			mediaType = models.MediaTypeVideos
		}
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = o.opts.DefaultPerPage
	}
	maxPages := req.MaxPages
	if maxPages <= 0 || maxPages > o.opts.RelatedMaxPages {
		maxPages = o.opts.RelatedMaxPages
	}

	seen := make(map[string]struct{})
	if req.Seed.ID != "" {
		seen[req.Seed.Key()] = struct{}{}
	}

	o.logger.Debug("Streaming related media", "query", query, "mediaType", string(mediaType), "maxPages", maxPages)

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := o.searcher.Search(ctx, query, mediaType, page, perPage)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(result.Items) == 0 {
			break
		}

		fresh := lo.Filter(result.Items, func(item models.MediaItem, _ int) bool {
			key := item.Key()
			if _, dup := seen[key]; dup {
				return false
			}
			seen[key] = struct{}{}
			return true
		})
		if len(fresh) == 0 {
			continue
		}

		if err := emit(Batch{
			Query:    query,
			Page:     page,
			Items:    fresh,
			Degraded: result.Degraded,
			Failures: result.Failures,
		}); err != nil {
			return err
		}
	}

	return emit(Batch{Query: query, Items: []models.MediaItem{}, Done: true})
}
