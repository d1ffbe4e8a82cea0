package repositories

import (
	"context"

	"github.com/adreel/backend/internal/models"
)

// VideoRepository exposes data access for video records.
type VideoRepository interface {
	List(ctx context.Context) ([]models.VideoRecord, error)
	Get(ctx context.Context, id string) (models.VideoRecord, error)
	// Insert assigns the record an identifier and persists it.
	Insert(ctx context.Context, record models.VideoRecord) (models.VideoRecord, error)
	Delete(ctx context.Context, id string) error
}
