package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

func TestSummarizeAppliesCeilings(t *testing.T) {
	summary := Summarize(models.ProviderCounts{Pexels: 8000, Unsplash: 10000, Pixabay: 12000}, DefaultLimits())

	assert.Equal(t, 8000+3750+500, summary.MaxDownloadLimit)
	assert.Equal(t, models.ProviderUsage{Images: 8000, Available: 8000, Usable: 8000}, summary.Providers.Pexels)
	assert.Equal(t, models.ProviderUsage{Images: 3750, Available: 10000, Usable: 3750, Cap: "125 pages"}, summary.Providers.Unsplash)
	assert.Equal(t, models.ProviderUsage{Images: 500, Available: 12000, Usable: 500, Cap: "500 items"}, summary.Providers.Pixabay)
}

func TestSummarizeBelowCeilings(t *testing.T) {
	summary := Summarize(models.ProviderCounts{Pexels: 3, Unsplash: 40, Pixabay: 7}, DefaultLimits())

	assert.Equal(t, 50, summary.MaxDownloadLimit)
	assert.Equal(t, 40, summary.Providers.Unsplash.Usable)
	assert.Equal(t, 7, summary.Providers.Pixabay.Usable)
}

func TestSummarizeCustomLimits(t *testing.T) {
	limits := Limits{UnsplashMaxPages: 2, UnsplashPerPage: 10, PixabayMaxItems: 5}
	summary := Summarize(models.ProviderCounts{Pexels: 1, Unsplash: 100, Pixabay: 100}, limits)

	assert.Equal(t, 20, limits.UnsplashCap())
	assert.Equal(t, 26, summary.MaxDownloadLimit)
	assert.Equal(t, "2 pages", summary.Providers.Unsplash.Cap)
	assert.Equal(t, "5 items", summary.Providers.Pixabay.Cap)
}

func TestAggregatorCountsImages(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	pexels.counts = map[Subtype]int{SubtypeImages: 1000}
	unsplash.counts = map[Subtype]int{SubtypeImages: 9000}
	pixabay.counts = map[Subtype]int{SubtypeImages: 300}

	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())
	summary, err := agg.Counts(context.Background(), "cats", models.MediaTypeImages)
	require.NoError(t, err)

	assert.Equal(t, "cats", summary.Query)
	assert.Equal(t, models.MediaTypeImages, summary.MediaType)
	assert.Equal(t, 1000+3750+300, summary.MaxDownloadLimit)
	assert.False(t, summary.Degraded)
	assert.Equal(t, []Subtype{SubtypeImages}, pixabay.counted)
}

func TestAggregatorCountsFailureCountsZero(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	pexels.counts = map[Subtype]int{SubtypeVideos: 70}
	pixabay.errs = map[Subtype]error{SubtypeVideos: ErrCredentialsExhausted}

	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())
	summary, err := agg.Counts(context.Background(), "sea", models.MediaTypeVideos)
	require.NoError(t, err)

	assert.Equal(t, 70, summary.MaxDownloadLimit)
	assert.Zero(t, summary.Providers.Pixabay.Usable)
	assert.True(t, summary.Degraded)
	assert.Equal(t, []models.ProviderFailure{
		{Provider: models.SourcePixabay, Subtype: "videos", Reason: models.ReasonExhausted},
	}, summary.Failures)
}

func TestAggregatorCountsRejectsBlankQuery(t *testing.T) {
	agg := NewAggregator(nil, utils.NewNopLogger())
	_, err := agg.Counts(context.Background(), "", models.MediaTypeImages)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 400, utils.StatusCode(err))
}

func TestAggregatorCountsRejectsUnknownMediaType(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())

	summary, err := agg.Counts(context.Background(), "cats", models.MediaType("audio"))

	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrUnknownMediaType)
	assert.Equal(t, 400, utils.StatusCode(err))
	assert.Empty(t, pexels.counted)
	assert.Empty(t, pixabay.counted)
}

func TestAggregatorCountsVideosSkipsUnsplash(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	pexels.counts = map[Subtype]int{SubtypeVideos: 40}
	pixabay.counts = map[Subtype]int{SubtypeVideos: 60}
	unsplash.errs = map[Subtype]error{SubtypeVideos: ErrUnsupportedSubtype}

	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())
	summary, err := agg.Counts(context.Background(), "waves", models.MediaTypeVideos)
	require.NoError(t, err)

	assert.Equal(t, 100, summary.MaxDownloadLimit)
	assert.False(t, summary.Degraded)
	assert.Empty(t, unsplash.counted)
}
