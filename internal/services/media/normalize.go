package media

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"norelock.dev/fetchx/backend/internal/models"
	"norelock.dev/fetchx/backend/internal/utils"
)

// Normalizer converts one provider-native record into a MediaItem.
type Normalizer func(raw json.RawMessage, subtype Subtype) (models.MediaItem, error)

// NormalizerFor returns the normalizer for source, or nil for unknown sources.
func NormalizerFor(source models.Source) Normalizer {
	switch source {
	case models.SourcePexels:
		return normalizePexels
	case models.SourceUnsplash:
		return normalizeUnsplash
	case models.SourcePixabay:
		return normalizePixabay
	default:
		return nil
	}
}

// Normalize converts a whole provider page. Any malformed record fails the page.
func Normalize(source models.Source, subtype Subtype, raws []json.RawMessage) ([]models.MediaItem, error) {
	normalize := NormalizerFor(source)
	if normalize == nil {
		return nil, fmt.Errorf("no normalizer for %q", source)
	}

	items := make([]models.MediaItem, 0, len(raws))
	for i, raw := range raws {
		item, err := normalize(raw, subtype)
		if err != nil {
			return nil, fmt.Errorf("%s %s item %d: %w", source, subtype, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Alt             string `json:"alt"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Src             struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
		Large    string `json:"large"`
		Medium   string `json:"medium"`
	} `json:"src"`
}

type pexelsVideoFile struct {
	Quality  string `json:"quality"`
	FileType string `json:"file_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

type pexelsVideo struct {
	ID     int64  `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  string `json:"image"`
	User   struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"user"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

func normalizePexels(raw json.RawMessage, subtype Subtype) (models.MediaItem, error) {
	if subtype == SubtypeVideos {
		return normalizePexelsVideo(raw)
	}

	var photo pexelsPhoto
	if err := json.Unmarshal(raw, &photo); err != nil {
		return models.MediaItem{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	url, _ := lo.Coalesce(photo.Src.Original, photo.Src.Large2x, photo.Src.Large)
	preview, _ := lo.Coalesce(photo.Src.Large, photo.Src.Medium, url)

	return assemble(models.MediaItem{
		ID:              strconv.FormatInt(photo.ID, 10),
		Source:          models.SourcePexels,
		Type:            models.KindImage,
		URL:             url,
		PreviewURL:      preview,
		Tags:            []string{},
		Width:           photo.Width,
		Height:          photo.Height,
		Photographer:    photo.Photographer,
		PhotographerURL: photo.PhotographerURL,
	})
}

func normalizePexelsVideo(raw json.RawMessage) (models.MediaItem, error) {
	var video pexelsVideo
	if err := json.Unmarshal(raw, &video); err != nil {
		return models.MediaItem{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}
	if len(video.VideoFiles) == 0 {
		return models.MediaItem{}, fmt.Errorf("%w: video %d has no renditions", ErrMalformedItem, video.ID)
	}

	primary := video.VideoFiles[0]
	preview := primary.Link
	if sd, ok := lo.Find(video.VideoFiles, func(f pexelsVideoFile) bool {
		return f.Quality == "sd" && f.Link != ""
	}); ok {
		preview = sd.Link
	}

	return assemble(models.MediaItem{
		ID:              strconv.FormatInt(video.ID, 10),
		Source:          models.SourcePexels,
		Type:            models.KindVideo,
		URL:             primary.Link,
		PreviewURL:      preview,
		Tags:            []string{},
		Width:           video.Width,
		Height:          video.Height,
		Photographer:    video.User.Name,
		PhotographerURL: video.User.URL,
	})
}

type unsplashTag struct {
	Title string `json:"title"`
}

type unsplashPhoto struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URLs   struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
		Small   string `json:"small"`
	} `json:"urls"`
	Tags []unsplashTag `json:"tags"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
}

func normalizeUnsplash(raw json.RawMessage, _ Subtype) (models.MediaItem, error) {
	var photo unsplashPhoto
	if err := json.Unmarshal(raw, &photo); err != nil {
		return models.MediaItem{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	url, _ := lo.Coalesce(photo.URLs.Full, photo.URLs.Raw, photo.URLs.Regular)
	preview, _ := lo.Coalesce(photo.URLs.Regular, photo.URLs.Small, url)

	tags := lo.FilterMap(photo.Tags, func(t unsplashTag, _ int) (string, bool) {
		return t.Title, t.Title != ""
	})

	return assemble(models.MediaItem{
		ID:              photo.ID,
		Source:          models.SourceUnsplash,
		Type:            models.KindImage,
		URL:             url,
		PreviewURL:      preview,
		Tags:            tags,
		Width:           photo.Width,
		Height:          photo.Height,
		Photographer:    photo.User.Name,
		PhotographerURL: photo.User.Links.HTML,
	})
}

type pixabayRendition struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int64  `json:"size"`
	Thumbnail string `json:"thumbnail"`
}

type pixabayHit struct {
	ID            int64  `json:"id"`
	Tags          string `json:"tags"`
	User          string `json:"user"`
	UserID        int64  `json:"user_id"`
	LargeImageURL string `json:"largeImageURL"`
	WebformatURL  string `json:"webformatURL"`
	PreviewURL    string `json:"previewURL"`
	ImageWidth    int    `json:"imageWidth"`
	ImageHeight   int    `json:"imageHeight"`
	Videos        *struct {
		Large  pixabayRendition `json:"large"`
		Medium pixabayRendition `json:"medium"`
		Small  pixabayRendition `json:"small"`
		Tiny   pixabayRendition `json:"tiny"`
	} `json:"videos"`
}

func normalizePixabay(raw json.RawMessage, subtype Subtype) (models.MediaItem, error) {
	var hit pixabayHit
	if err := json.Unmarshal(raw, &hit); err != nil {
		return models.MediaItem{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}

	item := models.MediaItem{
		ID:     strconv.FormatInt(hit.ID, 10),
		Source: models.SourcePixabay,
		Tags:   utils.SplitAndTrim(hit.Tags, ","),
	}
	if hit.User != "" {
		item.Photographer = hit.User
		item.PhotographerURL = fmt.Sprintf("https://pixabay.com/users/%s-%d/", hit.User, hit.UserID)
	}

	if subtype == SubtypeVideos {
		if hit.Videos == nil {
			return models.MediaItem{}, fmt.Errorf("%w: video %d has no renditions", ErrMalformedItem, hit.ID)
		}
		primary := hit.Videos.Large
		if primary.URL == "" {
			primary = hit.Videos.Medium
		}
		preview, _ := lo.Coalesce(hit.Videos.Small.URL, hit.Videos.Tiny.URL, primary.URL)

		item.Type = models.KindVideo
		item.URL = primary.URL
		item.PreviewURL = preview
		item.Width = primary.Width
		item.Height = primary.Height
		return assemble(item)
	}

	url, _ := lo.Coalesce(hit.LargeImageURL, hit.WebformatURL)
	preview, _ := lo.Coalesce(hit.WebformatURL, hit.PreviewURL, url)

	item.Type = models.KindImage
	item.URL = url
	item.PreviewURL = preview
	item.Width = hit.ImageWidth
	item.Height = hit.ImageHeight
	return assemble(item)
}

// assemble enforces the canonical item invariants shared by all providers.
func assemble(item models.MediaItem) (models.MediaItem, error) {
	if item.ID == "" || item.ID == "0" {
		return models.MediaItem{}, fmt.Errorf("%w: missing id", ErrMalformedItem)
	}
	if item.URL == "" && item.PreviewURL == "" {
		return models.MediaItem{}, fmt.Errorf("%w: %s item %s has no asset url", ErrMalformedItem, item.Source, item.ID)
	}
	if item.URL == "" {
		item.URL = item.PreviewURL
	}
	if item.PreviewURL == "" {
		item.PreviewURL = item.URL
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.Width = max(item.Width, 0)
	item.Height = max(item.Height, 0)
	return item, nil
}
