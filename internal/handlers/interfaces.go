package handlers

import (
	"context"

	"github.com/adreel/backend/internal/models"
	"github.com/adreel/backend/internal/videos"
)

// VideoService captures the video record workflows behind the API and pages.
type VideoService interface {
	Create(ctx context.Context, primary, ad videos.Upload) (models.VideoRecord, error)
	List(ctx context.Context) ([]models.VideoRecord, error)
	Get(ctx context.Context, id string) (models.VideoRecord, error)
	Delete(ctx context.Context, id string) error
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error
