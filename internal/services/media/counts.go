package media

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"norelock.dev/fetchx/backend/internal/models"
)

// Limits are the hard ceilings some providers put on how deep a client can page.
type Limits struct {
	UnsplashMaxPages int
	UnsplashPerPage  int
	PixabayMaxItems  int
}

// DefaultLimits returns the documented provider ceilings.
func DefaultLimits() Limits {
	return Limits{
		UnsplashMaxPages: 125,
		UnsplashPerPage:  30,
		PixabayMaxItems:  500,
	}
}

// UnsplashCap is the largest number of items Unsplash will serve for one query.
func (l Limits) UnsplashCap() int {
	return l.UnsplashMaxPages * l.UnsplashPerPage
}

// Summarize applies the provider ceilings to raw totals. Pexels is uncapped.
func Summarize(counts models.ProviderCounts, limits Limits) models.CountSummary {
	usage := func(available, usable int, ceiling string) models.ProviderUsage {
		return models.ProviderUsage{
			Images:    usable,
			Available: available,
			Usable:    usable,
			Cap:       ceiling,
		}
	}

	pexels := max(counts.Pexels, 0)
	unsplash := min(max(counts.Unsplash, 0), limits.UnsplashCap())
	pixabay := min(max(counts.Pixabay, 0), limits.PixabayMaxItems)

	return models.CountSummary{
		MaxDownloadLimit: pexels + unsplash + pixabay,
		Providers: models.ProviderUsages{
			Pexels:   usage(counts.Pexels, pexels, ""),
			Unsplash: usage(counts.Unsplash, unsplash, fmt.Sprintf("%d pages", limits.UnsplashMaxPages)),
			Pixabay:  usage(counts.Pixabay, pixabay, fmt.Sprintf("%d items", limits.PixabayMaxItems)),
		},
	}
}

// Counts probes every provider's total for query and summarizes the usable
// count. A failed probe counts zero and is reported in Failures.
func (a *Aggregator) Counts(ctx context.Context, query string, mediaType models.MediaType) (*models.CountSummary, error) {
	query, err := checkInput(query, mediaType)
	if err != nil {
		return nil, err
	}

	subtype := SubtypeImages
	if mediaType == models.MediaTypeVideos {
		subtype = SubtypeVideos
	}

	var counts models.ProviderCounts
	targets := map[models.Source]*int{
		models.SourcePexels:   &counts.Pexels,
		models.SourceUnsplash: &counts.Unsplash,
		models.SourcePixabay:  &counts.Pixabay,
	}
	failures := make([]*models.ProviderFailure, len(models.Sources))

	var g errgroup.Group
	for i, source := range models.Sources {
		p, ok := a.providers[source]
		if !ok || !servesKind(p, subtype.Kind()) {
			continue
		}
		dst := targets[source]
		g.Go(func() error {
			n, err := p.Count(ctx, query, subtype)
			if err != nil {
				failures[i] = a.fail(source, subtype, err)
				return nil
			}
			*dst = n
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(counts, a.limits)
	summary.Query = query
	summary.MediaType = mediaType
	for _, f := range failures {
		if f != nil {
			summary.Failures = append(summary.Failures, *f)
		}
	}
	summary.Degraded = len(summary.Failures) > 0

	a.logger.Debug("Counted results", "query", query, "mediaType", string(mediaType), "maxDownloadLimit", summary.MaxDownloadLimit)
	return &summary, nil
}

// servesKind reports whether p has any endpoint for kind. Unsplash has no
// videos and counts as zero for them.
func servesKind(p Provider, kind models.MediaKind) bool {
	return lo.ContainsBy(p.Subtypes(), func(s Subtype) bool {
		return s.Kind() == kind
	})
}
