package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adreel/backend/internal/config"
	"github.com/adreel/backend/internal/db"
	"github.com/adreel/backend/internal/handlers"
	"github.com/adreel/backend/internal/middleware"
	"github.com/adreel/backend/internal/repositories"
	"github.com/adreel/backend/internal/storage"
	"github.com/adreel/backend/internal/videos"
	"github.com/adreel/backend/internal/web"
)

const (
	mediaURLPrefix = "/media"
	// uploadBurst lets a client send a couple of uploads back to back before
	// the per-window rate applies.
	uploadBurst    = 2
	limiterIdleTTL = 10 * time.Minute
)

// recordStore is an opened record repository plus its lifecycle hooks.
type recordStore struct {
	repo   repositories.VideoRepository
	health handlers.HealthCheck
	close  func() error
}

// openRecords opens the record store selected by cfg.StoreDriver.
func openRecords(ctx context.Context, cfg config.Config) (recordStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{})
		if err != nil {
			return recordStore{}, err
		}
		return recordStore{
			repo:   repositories.NewPostgresVideoRepository(pool),
			health: pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	case config.StoreFile, "":
		repo, err := repositories.OpenFileVideoRepository(cfg.DataFile)
		if err != nil {
			return recordStore{}, err
		}
		return recordStore{
			repo: repo,
			health: func(ctx context.Context) error {
				_, err := os.Stat(cfg.DataFile)
				return err
			},
			close: repo.Close,
		}, nil
	default:
		return recordStore{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openStorage returns the asset storage and, for the local backend, the
// handler that serves stored files.
func openStorage(ctx context.Context, cfg config.Config) (videos.AssetStorage, http.Handler, error) {
	switch cfg.MediaBackend {
	case config.MediaS3:
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	case config.MediaFS, "":
		fs, err := storage.NewFSStorage(cfg.MediaDir, mediaURLPrefix)
		if err != nil {
			return nil, nil, err
		}
		return fs, fileServer(fs.Root()), nil
	default:
		return nil, nil, fmt.Errorf("unknown media backend %q", cfg.MediaBackend)
	}
}

// fileServer serves files below root without directory listings.
func fileServer(root string) http.Handler {
	files := http.FileServerFS(os.DirFS(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the preview workers and closes the
// record store.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	store, err := openRecords(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("open record store: %w", err)
	}

	assets, media, err := openStorage(ctx, cfg)
	if err != nil {
		_ = store.close()
		return handlers.Dependencies{}, nil, fmt.Errorf("open media storage: %w", err)
	}

	pages, err := web.NewPages()
	if err != nil {
		_ = store.close()
		return handlers.Dependencies{}, nil, fmt.Errorf("parse templates: %w", err)
	}

	prober := videos.NewProber(cfg.FFprobePath, cfg.MediaTimeout)
	transcoder := videos.NewTranscoder(cfg.FFmpegPath, cfg.MediaTimeout)
	previews := videos.NewPreviewRenderer(transcoder, assets, videos.PreviewRendererConfig{
		QueueSize:  cfg.PreviewQueue,
		Workers:    cfg.PreviewWorkers,
		JobTimeout: cfg.MediaTimeout,
	}, logger.With(slog.String("component", "previews")))

	host := videos.NewMediaHost(assets, prober, transcoder, previews, videos.MediaHostConfig{
		Folder:  cfg.MediaFolder,
		WorkDir: cfg.UploadDir,
	})
	records := repositories.NewCachingRepository(store.repo, cfg.RecordCacheTTL)

	deps := handlers.Dependencies{
		Videos:         videos.NewService(host, records),
		Pages:          pages,
		HealthCheck:    store.health,
		UploadLimiter:  middleware.NewIPRateLimiter(cfg.UploadRate, cfg.UploadRateWindow, uploadBurst, limiterIdleTTL),
		TrustProxy:     cfg.TrustProxy,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadDir:      cfg.UploadDir,
		AdMinInterval:  cfg.AdThrottle,
		Metrics:        promhttp.Handler(),
		Media:          media,
	}

	cleanup := func(ctx context.Context) error {
		return errors.Join(previews.Shutdown(ctx), store.close())
	}
	return deps, cleanup, nil
}

// newHandler builds the routed, logged HTTP handler.
func newHandler(deps handlers.Dependencies, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)
	return middleware.RequestLogger(logger)(mux)
}
