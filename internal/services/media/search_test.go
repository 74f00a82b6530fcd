package media

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

type fakeProvider struct {
	name     models.Source
	subtypes []Subtype
	pages    map[Subtype][]json.RawMessage
	counts   map[Subtype]int
	errs     map[Subtype]error

	mu       sync.Mutex
	searched []Subtype
	counted  []Subtype
}

func (f *fakeProvider) Name() models.Source { return f.name }
func (f *fakeProvider) Subtypes() []Subtype { return f.subtypes }

func (f *fakeProvider) Count(_ context.Context, _ string, subtype Subtype) (int, error) {
	f.mu.Lock()
	f.counted = append(f.counted, subtype)
	f.mu.Unlock()
	if err := f.errs[subtype]; err != nil {
		return 0, err
	}
	return f.counts[subtype], nil
}

func (f *fakeProvider) Search(_ context.Context, _ string, subtype Subtype, page, perPage int) (*models.ProviderPage, error) {
	f.mu.Lock()
	f.searched = append(f.searched, subtype)
	f.mu.Unlock()
	if err := f.errs[subtype]; err != nil {
		return nil, err
	}
	return &models.ProviderPage{Page: page, PerPage: perPage, Items: f.pages[subtype]}, nil
}

func newFakeProviders() (*fakeProvider, *fakeProvider, *fakeProvider) {
	pexels := &fakeProvider{
		name:     models.SourcePexels,
		subtypes: []Subtype{SubtypeImages, SubtypeVideos},
		pages: map[Subtype][]json.RawMessage{
			SubtypeImages: {raw(pexelsPhotoJSON(1)), raw(pexelsPhotoJSON(2))},
			SubtypeVideos: {raw(pexelsVideoJSON(3))},
		},
	}
	unsplash := &fakeProvider{
		name:     models.SourceUnsplash,
		subtypes: []Subtype{SubtypeImages},
		pages: map[Subtype][]json.RawMessage{
			SubtypeImages: {raw(unsplashPhotoJSON("a")), raw(unsplashPhotoJSON("b"))},
		},
	}
	pixabay := &fakeProvider{
		name:     models.SourcePixabay,
		subtypes: []Subtype{SubtypePhotos, SubtypeIllustrations, SubtypeVectors, SubtypeVideos},
		pages: map[Subtype][]json.RawMessage{
			SubtypePhotos:        {raw(pixabayHitJSON(10))},
			SubtypeIllustrations: {raw(pixabayHitJSON(11))},
			SubtypeVectors:       {raw(pixabayHitJSON(12))},
			SubtypeVideos:        {raw(pixabayVideoJSON(13))},
		},
	}
	return pexels, unsplash, pixabay
}

func keys(items []models.MediaItem) []string {
	return lo.Map(items, func(item models.MediaItem, _ int) string { return item.Key() })
}

func TestAggregatorSearchImagesFansOutToFiveCalls(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())

	result, err := agg.Search(context.Background(), " cats ", models.MediaTypeImages, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, "cats", result.Query)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 10, result.PerPage)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.Failures)
	assert.ElementsMatch(t, []string{
		"pexels:1", "pexels:2", "unsplash:a", "unsplash:b",
		"pixabay:10", "pixabay:11", "pixabay:12",
	}, keys(result.Items))

	assert.Equal(t, []Subtype{SubtypeImages}, pexels.searched)
	assert.Equal(t, []Subtype{SubtypeImages}, unsplash.searched)
	assert.ElementsMatch(t, []Subtype{SubtypePhotos, SubtypeIllustrations, SubtypeVectors}, pixabay.searched)
	for _, item := range result.Items {
		assert.Equal(t, models.KindImage, item.Type)
	}
}

func TestAggregatorSearchVideosNeverCallsUnsplash(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())

	result, err := agg.Search(context.Background(), "sea", models.MediaTypeVideos, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultPerPage, result.PerPage)
	assert.ElementsMatch(t, []string{"pexels:3", "pixabay:13"}, keys(result.Items))
	assert.Empty(t, unsplash.searched)
	assert.Equal(t, []Subtype{SubtypeVideos}, pixabay.searched)
	for _, item := range result.Items {
		assert.Equal(t, models.KindVideo, item.Type)
	}
}

func TestAggregatorSearchReportsFailedCalls(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	unsplash.errs = map[Subtype]error{SubtypeImages: ErrCredentialsExhausted}
	pixabay.errs = map[Subtype]error{SubtypeVectors: &UpstreamError{Provider: models.SourcePixabay, Status: 500}}
	pexels.pages[SubtypeImages] = append(pexels.pages[SubtypeImages], raw(`{"id": 99, "src": {}}`))

	rec := newCountingRecorder()
	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger(), WithRecorder(rec))

	result, err := agg.Search(context.Background(), "cats", models.MediaTypeImages, 1, 10)
	require.NoError(t, err)

	// One malformed Pexels record drops the whole Pexels page.
	assert.ElementsMatch(t, []string{"pixabay:10", "pixabay:11"}, keys(result.Items))
	assert.True(t, result.Degraded)
	assert.ElementsMatch(t, []models.ProviderFailure{
		{Provider: models.SourcePexels, Subtype: "images", Reason: models.ReasonNormalization},
		{Provider: models.SourceUnsplash, Subtype: "images", Reason: models.ReasonExhausted},
		{Provider: models.SourcePixabay, Subtype: "vectors", Reason: models.ReasonUpstream},
	}, result.Failures)
	assert.Len(t, rec.aggregates, 3)
}

func TestAggregatorSearchAllFailedStillSucceeds(t *testing.T) {
	boom := errors.New("boom")
	pexels, unsplash, pixabay := newFakeProviders()
	pexels.errs = map[Subtype]error{SubtypeVideos: boom}
	pixabay.errs = map[Subtype]error{SubtypeVideos: boom}

	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())
	result, err := agg.Search(context.Background(), "sea", models.MediaTypeVideos, 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.True(t, result.Degraded)
	assert.Len(t, result.Failures, 2)
}

func TestAggregatorSearchRejectsBlankQuery(t *testing.T) {
	agg := NewAggregator(nil, utils.NewNopLogger())
	_, err := agg.Search(context.Background(), "   ", models.MediaTypeImages, 1, 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAggregatorSearchRejectsUnknownMediaType(t *testing.T) {
	for _, mediaType := range []models.MediaType{"audio", ""} {
		t.Run(string(mediaType), func(t *testing.T) {
			pexels, unsplash, pixabay := newFakeProviders()
			agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger())

			result, err := agg.Search(context.Background(), "cats", mediaType, 1, 10)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrUnknownMediaType)
			assert.True(t, utils.IsBadRequest(err))
			assert.Empty(t, pexels.searched)
		})
	}
}

func TestAggregatorSkipsUnconfiguredProviders(t *testing.T) {
	pexels, _, _ := newFakeProviders()
	agg := NewAggregator([]Provider{pexels}, utils.NewNopLogger())

	result, err := agg.Search(context.Background(), "cats", models.MediaTypeImages, 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pexels:1", "pexels:2"}, keys(result.Items))
	assert.False(t, result.Degraded)

	_, ok := agg.Provider(models.SourceUnsplash)
	assert.False(t, ok)
}

func TestRoundRobinInterleaver(t *testing.T) {
	pexels, unsplash, pixabay := newFakeProviders()
	agg := NewAggregator([]Provider{pexels, unsplash, pixabay}, utils.NewNopLogger(), WithInterleaver(RoundRobinInterleaver{}))

	result, err := agg.Search(context.Background(), "cats", models.MediaTypeImages, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pexels:1", "unsplash:a", "pixabay:10", "pixabay:11", "pixabay:12",
		"pexels:2", "unsplash:b",
	}, keys(result.Items))
}

func TestShuffleInterleaverKeepsEveryItem(t *testing.T) {
	groups := [][]models.MediaItem{
		{{ID: "1", Source: models.SourcePexels}, {ID: "2", Source: models.SourcePexels}},
		nil,
		{{ID: "3", Source: models.SourcePixabay}},
	}
	items := ShuffleInterleaver{}.Interleave(groups)
	assert.ElementsMatch(t, []string{"pexels:1", "pexels:2", "pixabay:3"}, keys(items))
}

func TestNewInterleaver(t *testing.T) {
	i, err := NewInterleaver("")
	require.NoError(t, err)
	assert.IsType(t, ShuffleInterleaver{}, i)

	i, err = NewInterleaver("round_robin")
	require.NoError(t, err)
	assert.IsType(t, RoundRobinInterleaver{}, i)

	_, err = NewInterleaver("zigzag")
	assert.Error(t, err)
}
