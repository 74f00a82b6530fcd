package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

// DefaultPerPage is the per-call page size when the caller does not pick one.
const DefaultPerPage = 15

// Aggregator fans a query out to every provider endpoint that serves the
// requested media type and merges whatever comes back.
type Aggregator struct {
	providers   map[models.Source]Provider
	interleaver Interleaver
	limits      Limits
	recorder    Recorder
	logger      *utils.Logger
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithInterleaver replaces the default shuffle interleaver.
func WithInterleaver(i Interleaver) AggregatorOption {
	return func(a *Aggregator) {
		a.interleaver = i
	}
}

// WithLimits replaces the default provider ceilings.
func WithLimits(l Limits) AggregatorOption {
	return func(a *Aggregator) {
		a.limits = l
	}
}

// WithRecorder sets the metrics recorder for dropped provider calls.
func WithRecorder(r Recorder) AggregatorOption {
	return func(a *Aggregator) {
		a.recorder = recorderOrNop(r)
	}
}

// NewAggregator creates a new aggregator over providers.
func NewAggregator(providers []Provider, logger *utils.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		providers: lo.SliceToMap(providers, func(p Provider) (models.Source, Provider) {
			return p.Name(), p
		}),
		interleaver: ShuffleInterleaver{},
		limits:      DefaultLimits(),
		recorder:    nopRecorder{},
		logger:      logger.Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the configured provider for source.
func (a *Aggregator) Provider(source models.Source) (Provider, bool) {
	p, ok := a.providers[source]
	return p, ok
}

// Limits returns the configured provider ceilings.
func (a *Aggregator) Limits() Limits {
	return a.limits
}

type providerCall struct {
	provider Provider
	subtype  Subtype
}

// plan lists the provider calls for one aggregate page, in provider order.
func (a *Aggregator) plan(mediaType models.MediaType) []providerCall {
	var calls []providerCall
	for _, source := range models.Sources {
		p, ok := a.providers[source]
		if !ok {
			continue
		}
		for _, subtype := range p.Subtypes() {
			if subtype.MediaType() == mediaType {
				calls = append(calls, providerCall{provider: p, subtype: subtype})
			}
		}
	}
	return calls
}

// checkInput trims query and rejects input no provider call can serve. The
// returned errors map to 400 and still match the media sentinels.
func checkInput(query string, mediaType models.MediaType) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", utils.BadRequestError("query is required", ErrEmptyQuery)
	}
	if mediaType != models.MediaTypeImages && mediaType != models.MediaTypeVideos {
		return "", utils.BadRequestError(fmt.Sprintf("unknown media type %q", mediaType), ErrUnknownMediaType)
	}
	return query, nil
}

// Search fetches one page from every matching provider endpoint concurrently,
// normalizes each page and interleaves the results. A failed call contributes
// no items and is reported in Failures; Search itself only fails on bad input.
func (a *Aggregator) Search(ctx context.Context, query string, mediaType models.MediaType, page, perPage int) (*models.SearchResult, error) {
	query, err := checkInput(query, mediaType)
	if err != nil {
		return nil, err
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page = clampPage(page)

	a.logger.Debug("Aggregating search", "query", query, "mediaType", string(mediaType), "page", page, "perPage", perPage)

	calls := a.plan(mediaType)
	groups := make([][]models.MediaItem, len(calls))
	failures := make([]*models.ProviderFailure, len(calls))

	// Every goroutine returns nil: one provider failing never cancels the others.
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			items, err := a.searchOne(ctx, call, query, page, perPage)
			if err != nil {
				failures[i] = a.fail(call.provider.Name(), call.subtype, err)
				return nil
			}
			groups[i] = items
			return nil
		})
	}
	_ = g.Wait()

	items := a.interleaver.Interleave(groups)
	if items == nil {
		items = []models.MediaItem{}
	}
	reported := lo.FilterMap(failures, func(f *models.ProviderFailure, _ int) (models.ProviderFailure, bool) {
		if f == nil {
			return models.ProviderFailure{}, false
		}
		return *f, true
	})

	return &models.SearchResult{
		Query:     query,
		MediaType: mediaType,
		Page:      page,
		PerPage:   perPage,
		Items:     items,
		Degraded:  len(reported) > 0,
		Failures:  reported,
	}, nil
}

func (a *Aggregator) searchOne(ctx context.Context, call providerCall, query string, page, perPage int) ([]models.MediaItem, error) {
	result, err := call.provider.Search(ctx, query, call.subtype, page, perPage)
	if err != nil {
		return nil, err
	}
	return Normalize(call.provider.Name(), call.subtype, result.Items)
}

// fail logs and records a dropped provider call.
func (a *Aggregator) fail(source models.Source, subtype Subtype, err error) *models.ProviderFailure {
	reason := failureReason(err)
	if reason == models.ReasonCanceled {
		a.logger.Debug("Provider call canceled", "provider", string(source), "subtype", string(subtype))
	} else {
		a.logger.Error("Provider call failed", err, "provider", string(source), "subtype", string(subtype), "reason", string(reason))
	}
	a.recorder.AggregateFailure(source, string(subtype), reason)
	return &models.ProviderFailure{
		Provider: source,
		Subtype:  string(subtype),
		Reason:   reason,
	}
}
