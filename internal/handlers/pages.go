package handlers

import (
	"net/http"
	"time"

	"github.com/adreel/backend/internal/logging"
	"github.com/adreel/backend/internal/videos"
	"github.com/adreel/backend/internal/web"
)

// PageHandler serves the HTML pages.
type PageHandler struct {
	Videos VideoService
	Pages  *web.Pages
	// AdMinInterval is the playback page's time-update sampling interval.
	AdMinInterval time.Duration
}

// Index handles GET /, the upload form.
func (h PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, web.PageIndex, web.IndexPage{Accept: videos.VideoExtension})
}

// List handles GET /videos.
func (h PageHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.Videos == nil {
		h.renderError(w, r, errVideosUnavailable)
		return
	}

	records, err := h.Videos.List(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageVideos, web.NewVideosPage(records))
}

// Watch handles GET /videos/{id}.
func (h PageHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.Videos == nil {
		h.renderError(w, r, errVideosUnavailable)
		return
	}

	record, err := h.Videos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, web.PageWatch, web.NewWatchPage(record, h.AdMinInterval.Milliseconds()))
}

func (h PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	page := web.ErrorPage{Title: http.StatusText(status), Message: "Something went wrong loading this page."}
	if status == http.StatusNotFound {
		page.Message = "This video does not exist."
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("page failed", "status", status, "error", err)
	} else {
		logger.Warn("page returned client error", "status", status, "error", err)
	}
	h.render(w, r, status, web.PageError, page)
}

func (h PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if h.Pages == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.Pages.Render(w, name, data); err != nil {
		logging.FromContext(r.Context()).Error("render page", "page", name, "error", err)
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}
