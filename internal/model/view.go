package model

import (
	"time"
)

// VideoView is the client-facing representation of a video row, decorated
// with URLs for each media kind.
type VideoView struct {
	ID             uint       `json:"id"`
	Category       string     `json:"category"`
	SearchCategory string     `json:"searchCategory"`
	Preacher       string     `json:"preacher"`
	Name           string     `json:"name"`
	Title          string     `json:"title"`
	Date           *time.Time `json:"date"`
	Language       string     `json:"language,omitempty"`
	RuntimeMinutes *float64   `json:"runtimeMinutes"`
	ViewCount      int64      `json:"viewCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	StreamURL      string     `json:"streamUrl"`
	AudioURL       string     `json:"audioUrl"`
	ThumbnailURL   string     `json:"thumbnailUrl"`
	SubtitlesURL   string     `json:"subtitlesUrl"`
}

// MediaURLs holds one URL per media kind
type MediaURLs struct {
	Stream    string
	Audio     string
	Thumbnail string
	Subtitles string
}

// NewVideoView builds the client view of v with the given media URLs
func NewVideoView(v *Video, urls MediaURLs) VideoView {
	return VideoView{
		ID:             v.ID,
		Category:       v.Category,
		SearchCategory: v.DisplayCategory(),
		Preacher:       v.Preacher,
		Name:           v.Name,
		Title:          v.DisplayTitle(),
		Date:           v.Date,
		Language:       v.Language,
		RuntimeMinutes: v.RuntimeMinutes,
		ViewCount:      v.Clicks,
		CreatedAt:      v.CreatedAt,
		StreamURL:      urls.Stream,
		AudioURL:       urls.Audio,
		ThumbnailURL:   urls.Thumbnail,
		SubtitlesURL:   urls.Subtitles,
	}
}

// CategorySummary is one row of the category index
type CategorySummary struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// PreacherSummary is one row of the preacher index
type PreacherSummary struct {
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	Count      int64      `json:"count"`
	LatestDate *time.Time `json:"latestDate"`
}

// CatalogStats summarizes the catalog for mirror synchronization
type CatalogStats struct {
	Total         int64      `json:"total"`
	MaxID         uint       `json:"maxId"`
	LastCreatedAt *time.Time `json:"lastCreatedAt"`
}
