package model

import (
	"time"
)

// Video represents a single catalogued sermon recording
type Video struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Category       string     `gorm:"size:100;index;not null" json:"category"`
	SearchCategory string     `gorm:"size:200;index" json:"searchCategory,omitempty"`
	Preacher       string     `gorm:"size:200;index;not null" json:"preacher"`
	Name           string     `gorm:"size:500" json:"name"`
	Title          string     `gorm:"size:500" json:"title"`
	Date           *time.Time `gorm:"type:date;index" json:"date,omitempty"`
	MediaPath      string     `gorm:"size:700;uniqueIndex;not null" json:"mediaPath"`
	AudioPath      string     `gorm:"size:700" json:"audioPath,omitempty"`
	SubtitlePath   string     `gorm:"size:700" json:"subtitlePath,omitempty"`
	ThumbnailPath  string     `gorm:"size:700" json:"thumbnailPath,omitempty"`
	Language       string     `gorm:"size:8;index" json:"language,omitempty"`
	RuntimeMinutes *float64   `json:"runtimeMinutes,omitempty"`
	Clicks         int64      `gorm:"default:0;not null;index" json:"viewCount"`
	CreatedAt      time.Time  `gorm:"index" json:"createdAt"`
}

// TableName returns the table name for Video
func (Video) TableName() string {
	return "videos"
}

// DisplayTitle prefers the human title and falls back to the internal name
func (v *Video) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.Name
}

// DisplayCategory prefers the display category and falls back to the slug
func (v *Video) DisplayCategory() string {
	if v.SearchCategory != "" {
		return v.SearchCategory
	}
	return v.Category
}

// IsLong reports whether the runtime is at or above the short/long threshold.
// Videos without a runtime are neither short nor long.
func (v *Video) IsLong() (long bool, known bool) {
	if v.RuntimeMinutes == nil {
		return false, false
	}
	return *v.RuntimeMinutes >= LongThresholdMinutes, true
}

// LongThresholdMinutes separates "short" from "long" recordings
const LongThresholdMinutes = 20.0
