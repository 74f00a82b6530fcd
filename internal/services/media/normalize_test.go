package media

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"norelock.dev/fetchx/backend/internal/models"
)

func pexelsPhotoJSON(id int) string {
	return fmt.Sprintf(`{
		"id": %d, "width": 4000, "height": 3000,
		"photographer": "Jane", "photographer_url": "https://www.pexels.com/@jane",
		"src": {"original": "https://images.pexels.com/%d/original.jpg", "large": "https://images.pexels.com/%d/large.jpg"}
	}`, id, id, id)
}

func pexelsVideoJSON(id int) string {
	return fmt.Sprintf(`{
		"id": %d, "width": 1920, "height": 1080,
		"user": {"name": "Sam", "url": "https://www.pexels.com/@sam"},
		"video_files": [
			{"quality": "hd", "link": "https://videos.pexels.com/%d/hd.mp4", "width": 1920, "height": 1080},
			{"quality": "sd", "link": "https://videos.pexels.com/%d/sd.mp4", "width": 640, "height": 360}
		]
	}`, id, id, id)
}

func unsplashPhotoJSON(id string) string {
	return fmt.Sprintf(`{
		"id": %q, "width": 5000, "height": 3333,
		"urls": {"full": "https://images.unsplash.com/%s?full", "regular": "https://images.unsplash.com/%s?regular"},
		"tags": [{"title": "cat"}, {"title": ""}, {"title": "pet"}],
		"user": {"name": "Ana", "links": {"html": "https://unsplash.com/@ana"}}
	}`, id, id, id)
}

func pixabayHitJSON(id int) string {
	return fmt.Sprintf(`{
		"id": %d, "tags": "cat, kitten ,, animal", "user": "bob", "user_id": 77,
		"largeImageURL": "https://pixabay.com/get/%d_1280.jpg", "webformatURL": "https://pixabay.com/get/%d_640.jpg",
		"imageWidth": 6000, "imageHeight": 4000
	}`, id, id, id)
}

func pixabayVideoJSON(id int) string {
	return fmt.Sprintf(`{
		"id": %d, "tags": "sea", "user": "eve", "user_id": 9,
		"videos": {
			"large": {"url": "https://cdn.pixabay.com/%d/large.mp4", "width": 3840, "height": 2160},
			"small": {"url": "https://cdn.pixabay.com/%d/small.mp4", "width": 960, "height": 540}
		}
	}`, id, id, id)
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestNormalizePexelsPhoto(t *testing.T) {
	item, err := NormalizerFor(models.SourcePexels)(raw(pexelsPhotoJSON(101)), SubtypeImages)
	require.NoError(t, err)

	assert.Equal(t, models.MediaItem{
		ID:              "101",
		Source:          models.SourcePexels,
		Type:            models.KindImage,
		URL:             "https://images.pexels.com/101/original.jpg",
		PreviewURL:      "https://images.pexels.com/101/large.jpg",
		Tags:            []string{},
		Width:           4000,
		Height:          3000,
		Photographer:    "Jane",
		PhotographerURL: "https://www.pexels.com/@jane",
	}, item)
	assert.Equal(t, "pexels:101", item.Key())
}

func TestNormalizePexelsVideoPrefersSDPreview(t *testing.T) {
	item, err := normalizePexels(raw(pexelsVideoJSON(5)), SubtypeVideos)
	require.NoError(t, err)

	assert.Equal(t, models.KindVideo, item.Type)
	assert.Equal(t, "https://videos.pexels.com/5/hd.mp4", item.URL)
	assert.Equal(t, "https://videos.pexels.com/5/sd.mp4", item.PreviewURL)
	assert.Equal(t, "Sam", item.Photographer)
	assert.Equal(t, "https://www.pexels.com/@sam", item.PhotographerURL)
}

func TestNormalizePexelsVideoWithoutSDUsesFirstRendition(t *testing.T) {
	body := `{"id": 6, "video_files": [{"quality": "hd", "link": "https://v/6/hd.mp4"}]}`
	item, err := normalizePexels(raw(body), SubtypeVideos)
	require.NoError(t, err)
	assert.Equal(t, "https://v/6/hd.mp4", item.URL)
	assert.Equal(t, "https://v/6/hd.mp4", item.PreviewURL)
}

func TestNormalizePexelsVideoWithoutRenditionsFails(t *testing.T) {
	_, err := normalizePexels(raw(`{"id": 7, "video_files": []}`), SubtypeVideos)
	assert.ErrorIs(t, err, ErrMalformedItem)
}

func TestNormalizeUnsplashPhoto(t *testing.T) {
	item, err := normalizeUnsplash(raw(unsplashPhotoJSON("Xy1")), SubtypeImages)
	require.NoError(t, err)

	assert.Equal(t, "Xy1", item.ID)
	assert.Equal(t, "https://images.unsplash.com/Xy1?full", item.URL)
	assert.Equal(t, "https://images.unsplash.com/Xy1?regular", item.PreviewURL)
	assert.Equal(t, []string{"cat", "pet"}, item.Tags)
	assert.Equal(t, "Ana", item.Photographer)
	assert.Equal(t, "https://unsplash.com/@ana", item.PhotographerURL)
}

func TestNormalizePixabayImage(t *testing.T) {
	item, err := normalizePixabay(raw(pixabayHitJSON(42)), SubtypeIllustrations)
	require.NoError(t, err)

	assert.Equal(t, "42", item.ID)
	assert.Equal(t, models.KindImage, item.Type)
	assert.Equal(t, "https://pixabay.com/get/42_1280.jpg", item.URL)
	assert.Equal(t, "https://pixabay.com/get/42_640.jpg", item.PreviewURL)
	assert.Equal(t, []string{"cat", "kitten", "animal"}, item.Tags)
	assert.Equal(t, 6000, item.Width)
	assert.Equal(t, 4000, item.Height)
	assert.Equal(t, "https://pixabay.com/users/bob-77/", item.PhotographerURL)
}

func TestNormalizePixabayVideo(t *testing.T) {
	item, err := normalizePixabay(raw(pixabayVideoJSON(8)), SubtypeVideos)
	require.NoError(t, err)

	assert.Equal(t, models.KindVideo, item.Type)
	assert.Equal(t, "https://cdn.pixabay.com/8/large.mp4", item.URL)
	assert.Equal(t, "https://cdn.pixabay.com/8/small.mp4", item.PreviewURL)
	assert.Equal(t, 3840, item.Width)
	assert.Equal(t, 2160, item.Height)
	assert.Equal(t, []string{"sea"}, item.Tags)
}

func TestNormalizeFallsBackToAvailableAsset(t *testing.T) {
	item, err := normalizePixabay(raw(`{"id": 3, "webformatURL": "https://p/3_640.jpg"}`), SubtypePhotos)
	require.NoError(t, err)
	assert.Equal(t, "https://p/3_640.jpg", item.URL)
	assert.Equal(t, "https://p/3_640.jpg", item.PreviewURL)
	assert.Empty(t, item.PhotographerURL)
	assert.NotNil(t, item.Tags)

	item, err = normalizeUnsplash(raw(`{"id": "u", "urls": {"full": "https://u/full"}}`), SubtypeImages)
	require.NoError(t, err)
	assert.Equal(t, "https://u/full", item.PreviewURL)
	assert.Equal(t, []string{}, item.Tags)
}

func TestNormalizeKeepsItemsWithUnknownDimensions(t *testing.T) {
	item, err := normalizePixabay(raw(`{"id": 4, "largeImageURL": "https://p/4.jpg", "imageWidth": -1}`), SubtypePhotos)
	require.NoError(t, err)
	assert.Zero(t, item.Width)
	assert.Zero(t, item.Height)

	item, err = normalizePexels(raw(`{"id": 5, "video_files": [{"link": "https://v/5.mp4"}]}`), SubtypeVideos)
	require.NoError(t, err)
	assert.Equal(t, "https://v/5.mp4", item.URL)
	assert.Zero(t, item.Width)
	assert.Zero(t, item.Height)
}

func TestNormalizeRejectsItemsWithoutAssets(t *testing.T) {
	cases := map[string]struct {
		source  models.Source
		subtype Subtype
		body    string
	}{
		"pexels photo":  {models.SourcePexels, SubtypeImages, `{"id": 1, "src": {}}`},
		"unsplash":      {models.SourceUnsplash, SubtypeImages, `{"id": "a", "urls": {}}`},
		"pixabay image": {models.SourcePixabay, SubtypePhotos, `{"id": 2}`},
		"pixabay video": {models.SourcePixabay, SubtypeVideos, `{"id": 3}`},
		"missing id":    {models.SourceUnsplash, SubtypeImages, `{"urls": {"full": "https://u"}}`},
		"not an object": {models.SourcePexels, SubtypeImages, `[1, 2]`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizerFor(tc.source)(raw(tc.body), tc.subtype)
			assert.ErrorIs(t, err, ErrMalformedItem)
		})
	}
}

func TestNormalizeFailsWholePage(t *testing.T) {
	raws := []json.RawMessage{raw(pixabayHitJSON(1)), raw(`{"id": 2}`)}
	items, err := Normalize(models.SourcePixabay, SubtypePhotos, raws)
	assert.Nil(t, items)
	assert.ErrorIs(t, err, ErrMalformedItem)
	assert.Equal(t, models.ReasonNormalization, failureReason(err))
}
