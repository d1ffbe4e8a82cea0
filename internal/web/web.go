// Package web renders the upload, listing and playback pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/adreel/backend/internal/models"
	"github.com/adreel/backend/internal/player"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names accepted by Render.
const (
	PageIndex  = "index"
	PageVideos = "videos"
	PageWatch  = "watch"
	PageError  = "error"
)

// IndexPage is the upload form.
type IndexPage struct {
	Accept string
}

// VideosPage lists stored records.
type VideosPage struct {
	Videos []VideoTile
}

// VideoTile is one record on the listing page.
type VideoTile struct {
	ID       string
	Poster   string
	Filename string
	URL      string
}

// WatchPage plays a record's video with its ad.
type WatchPage struct {
	ID                string
	Filename          string
	VideoURL          string
	AdURL             string
	Placement         int
	MinIntervalMillis int64
	ResumeSeconds     float64
}

// ErrorPage reports a missing record or a failed lookup.
type ErrorPage struct {
	Title   string
	Message string
}

// NewVideosPage builds the listing for the provided records.
func NewVideosPage(records []models.VideoRecord) VideosPage {
	page := VideosPage{Videos: make([]VideoTile, 0, len(records))}
	for _, rec := range records {
		page.Videos = append(page.Videos, VideoTile{
			ID:       rec.ID,
			Poster:   rec.Video.PosterURL(),
			Filename: rec.Video.OriginalFilename,
			URL:      rec.Video.SecureURL,
		})
	}
	return page
}

// NewWatchPage builds the playback page for record. The page script runs the
// same state machine as player.Controller with the given sampling interval.
func NewWatchPage(record models.VideoRecord, minInterval int64) WatchPage {
	if minInterval <= 0 {
		minInterval = player.DefaultMinInterval.Milliseconds()
	}
	return WatchPage{
		ID:                record.ID,
		Filename:          record.Video.OriginalFilename,
		VideoURL:          record.Video.SecureURL,
		AdURL:             record.AdVideo.SecureURL,
		Placement:         max(record.AdPlacement, 0),
		MinIntervalMillis: minInterval,
		ResumeSeconds:     player.ResumeIncrement.Seconds(),
	}
}

// Pages holds the parsed page templates.
type Pages struct {
	templates map[string]*template.Template
}

// NewPages parses every page against the shared layout.
func NewPages() (*Pages, error) {
	pages := &Pages{templates: make(map[string]*template.Template)}
	for _, name := range []string{PageIndex, PageVideos, PageWatch, PageError} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		pages.templates[name] = tmpl
	}
	return pages, nil
}

// Render writes the named page. Nothing is written when execution fails.
func (p *Pages) Render(w io.Writer, name string, data any) error {
	tmpl, ok := p.templates[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s page: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static serves the stylesheet under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
