package videos

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adreel/backend/internal/logging"
	"github.com/adreel/backend/internal/metrics"
	"github.com/adreel/backend/internal/models"
	"github.com/adreel/backend/internal/repositories"
)

// MediaAssets uploads and deletes remote assets.
type MediaAssets interface {
	Upload(ctx context.Context, u Upload, t Transformation) (models.Asset, error)
	Delete(ctx context.Context, publicIDs []string) error
}

// Service creates, reads and deletes video records together with their
// remote assets. Errors it returns carry a Kind.
type Service struct {
	Host    MediaAssets
	Records repositories.VideoRepository
}

// NewService wires a Service over the media host and record store.
func NewService(host MediaAssets, records repositories.VideoRepository) *Service {
	return &Service{Host: host, Records: records}
}

// Create uploads the primary clip, then the ad letterboxed to the primary's
// aspect ratio, and stores a record placing the ad at the primary's midpoint.
// Assets already uploaded are left in place when a later step fails.
func (s *Service) Create(ctx context.Context, primary, ad Upload) (record models.VideoRecord, err error) {
	defer func() { metrics.IncUpload(outcome(err)) }()

	if strings.TrimSpace(primary.Path) == "" {
		return models.VideoRecord{}, validationError("create video", "video file is required")
	}
	if strings.TrimSpace(ad.Path) == "" {
		return models.VideoRecord{}, validationError("create video", "adVideo file is required")
	}
	for _, u := range []Upload{primary, ad} {
		if !strings.EqualFold(filepath.Ext(u.Filename), VideoExtension) {
			return models.VideoRecord{}, &Error{Kind: KindValidation, Op: "create video", Err: fmt.Errorf("%q: %w", u.Filename, ErrUnsupportedFormat)}
		}
	}
	if s == nil || s.Host == nil || s.Records == nil {
		return models.VideoRecord{}, upstreamError("create video", ErrHostUnavailable)
	}

	ctx, span := logging.StartSpan(ctx, "videos.create",
		slog.String("video_file", primary.Filename),
		slog.String("ad_file", ad.Filename),
	)
	defer func() { span.EndErr(err) }()
	logger := logging.FromContext(ctx)

	started := time.Now()
	video, err := s.Host.Upload(ctx, primary, Transformation{})
	metrics.ObserveMediaUpload("primary", time.Since(started).Seconds())
	if err != nil {
		return models.VideoRecord{}, upstreamError("upload video", err)
	}

	aspect := video.AspectRatio()
	if aspect <= 0 {
		logOrphans(logger, "video has no dimensions", video)
		return models.VideoRecord{}, validationError("upload video", "video has no dimensions")
	}

	started = time.Now()
	adVideo, err := s.Host.Upload(ctx, ad, AdTransformation(aspect))
	metrics.ObserveMediaUpload("ad", time.Since(started).Seconds())
	if err != nil {
		logOrphans(logger, "ad upload failed", video)
		return models.VideoRecord{}, upstreamError("upload ad video", err)
	}

	stored, err := s.Records.Insert(ctx, models.VideoRecord{
		Video:       video,
		AdVideo:     adVideo,
		AdPlacement: models.AdPlacement(video.Duration),
	})
	if err != nil {
		logOrphans(logger, "record insert failed", video, adVideo)
		return models.VideoRecord{}, storeError("insert video", err)
	}

	logger.Info("video created",
		slog.String("id", stored.ID),
		slog.Int("ad_placement", stored.AdPlacement),
		slog.Float64("duration", video.Duration),
	)
	return stored, nil
}

// List returns every stored record.
func (s *Service) List(ctx context.Context) ([]models.VideoRecord, error) {
	if s == nil || s.Records == nil {
		return nil, upstreamError("list videos", ErrHostUnavailable)
	}
	records, err := s.Records.List(ctx)
	if err != nil {
		return nil, storeError("list videos", err)
	}
	if records == nil {
		records = []models.VideoRecord{}
	}
	return records, nil
}

// Get returns the record with the provided id.
func (s *Service) Get(ctx context.Context, id string) (models.VideoRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.VideoRecord{}, validationError("get video", "id is required")
	}
	if s == nil || s.Records == nil {
		return models.VideoRecord{}, upstreamError("get video", ErrHostUnavailable)
	}
	record, err := s.Records.Get(ctx, id)
	if err != nil {
		return models.VideoRecord{}, storeError("get video", err)
	}
	return record, nil
}

// Delete removes both remote assets in one call and, only once that succeeds,
// the record itself. A failed remote deletion leaves the record untouched.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() { metrics.IncDeletion(outcome(err)) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return validationError("delete video", "id is required")
	}
	if s == nil || s.Host == nil || s.Records == nil {
		return upstreamError("delete video", ErrHostUnavailable)
	}

	ctx, span := logging.StartSpan(ctx, "videos.delete", slog.String("record_id", id))
	defer func() { span.EndErr(err) }()

	record, err := s.Records.Get(ctx, id)
	if err != nil {
		return storeError("delete video", err)
	}

	if err := s.Host.Delete(ctx, []string{record.Video.PublicID, record.AdVideo.PublicID}); err != nil {
		return upstreamError("delete assets", err)
	}

	if err := s.Records.Delete(ctx, id); err != nil {
		return storeError("delete video", err)
	}

	logging.FromContext(ctx).Info("video deleted", slog.String("id", id))
	return nil
}

func logOrphans(logger *slog.Logger, reason string, assets ...models.Asset) {
	for _, asset := range assets {
		logger.Warn("remote asset left without a record",
			slog.String("reason", reason),
			slog.String("public_id", asset.PublicID),
		)
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return KindOf(err).String()
}
