package models

// ProviderUsage is one provider's entry in a CountSummary.
type ProviderUsage struct {
	// Images mirrors Usable; the frontend reads this field.
	Images    int    `json:"images"`
	Available int    `json:"available"`
	Usable    int    `json:"usable"`
	Cap       string `json:"cap,omitempty"`
}

// ProviderUsages groups the per-provider entries of a summary.
type ProviderUsages struct {
	Pexels   ProviderUsage `json:"pexels"`
	Unsplash ProviderUsage `json:"unsplash"`
	Pixabay  ProviderUsage `json:"pixabay"`
}

// ProviderCounts holds raw upstream totals, before any ceiling is applied.
type ProviderCounts struct {
	Pexels   int
	Unsplash int
	Pixabay  int
}

// CountSummary is the usable-count summary for one query and media type.
// MaxDownloadLimit is always the sum of the three Usable values.
type CountSummary struct {
	Query            string            `json:"query"`
	MediaType        MediaType         `json:"mediaType"`
	MaxDownloadLimit int               `json:"maxDownloadLimit"`
	Providers        ProviderUsages    `json:"providers"`
	Degraded         bool              `json:"degraded"`
	Failures         []ProviderFailure `json:"failures,omitempty"`
}
