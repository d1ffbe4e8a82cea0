package models

import (
	"math"
	"path"
	"strings"
	"time"
)

// Asset describes a video stored on the media host.
type Asset struct {
	PublicID         string    `json:"public_id"`
	SecureURL        string    `json:"secure_url"`
	Duration         float64   `json:"duration"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	OriginalFilename string    `json:"original_filename"`
	Format           string    `json:"format,omitempty"`
	Bytes            int64     `json:"bytes,omitempty"`
	ResourceType     string    `json:"resource_type,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AspectRatio returns width/height, or 0 when the asset has no dimensions.
func (a Asset) AspectRatio() float64 {
	if a.Width <= 0 || a.Height <= 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// PosterURL swaps the playable URL's extension for the animated preview.
func (a Asset) PosterURL() string {
	ext := path.Ext(a.SecureURL)
	if ext == "" {
		return a.SecureURL + PosterExtension
	}
	return strings.TrimSuffix(a.SecureURL, ext) + PosterExtension
}

// PosterExtension is the extension of the animated preview rendered for every upload.
const PosterExtension = ".gif"

// VideoRecord pairs a primary video with the ad inserted into it.
type VideoRecord struct {
	ID          string    `json:"_id"`
	Video       Asset     `json:"video"`
	AdVideo     Asset     `json:"adVideo"`
	AdPlacement int       `json:"adPlacement"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AdPlacement returns the whole-second midpoint of a video of the given duration.
// Invalid durations place the ad at the start.
func AdPlacement(duration float64) int {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0
	}
	return int(math.Round(duration / 2))
}
