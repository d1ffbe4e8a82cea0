package handlers

import (
	"net/http"
	"time"

	"github.com/adreel/backend/internal/web"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Check: deps.HealthCheck}
	api := VideoHandler{
		Videos:         deps.Videos,
		Limiter:        deps.UploadLimiter,
		TrustProxy:     deps.TrustProxy,
		MaxUploadBytes: deps.MaxUploadBytes,
		UploadDir:      deps.UploadDir,
	}
	pages := PageHandler{Videos: deps.Videos, Pages: deps.Pages, AdMinInterval: deps.AdMinInterval}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/videos", api.Collection)
	mux.HandleFunc("/api/videos/{$}", api.Item)
	mux.HandleFunc("/api/videos/{id}", api.Item)

	mux.HandleFunc("/{$}", pages.Index)
	mux.HandleFunc("/videos", pages.List)
	mux.HandleFunc("/videos/{id}", pages.Watch)
	mux.Handle("/static/", web.Static())

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	if deps.Media != nil {
		mux.Handle("/media/", http.StripPrefix("/media/", deps.Media))
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Videos         VideoService
	Pages          *web.Pages
	HealthCheck    HealthCheck
	UploadLimiter  RateLimiter
	TrustProxy     bool
	MaxUploadBytes int64
	UploadDir      string
	AdMinInterval  time.Duration
	// Metrics serves the Prometheus exposition when set.
	Metrics http.Handler
	// Media serves locally stored assets when set.
	Media http.Handler
}
