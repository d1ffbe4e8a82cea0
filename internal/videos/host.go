package videos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adreel/backend/internal/logging"
	"github.com/adreel/backend/internal/models"
)

// DefaultFolder is the logical folder every asset is stored under.
const DefaultFolder = "videos-with-ads"

// VideoExtension is the only container accepted for uploads.
const VideoExtension = ".mp4"

// AssetStorage persists rendered assets and returns their public URLs.
type AssetStorage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	DeleteMany(ctx context.Context, keys []string) error
}

// MediaProber reports the properties of a local video file.
type MediaProber interface {
	Probe(ctx context.Context, path string) (Probe, error)
}

// MediaRenderer applies transformations to local video files.
type MediaRenderer interface {
	Render(ctx context.Context, src, dst string, in Probe, t Transformation) error
	Preview(ctx context.Context, src, dst string) error
}

// PreviewQueue accepts poster render jobs. The queue owns the job's source
// file once Enqueue returns nil. Cancel drops the poster of a deleted asset.
type PreviewQueue interface {
	Enqueue(ctx context.Context, job PreviewJob) error
	Cancel(publicID string)
}

// Upload is a video file received from a client.
type Upload struct {
	Path     string
	Filename string
}

// MediaHost uploads and deletes video assets. It validates and probes each
// file locally, renders transformations with ffmpeg and stores the result.
type MediaHost struct {
	Storage  AssetStorage
	Prober   MediaProber
	Renderer MediaRenderer
	Previews PreviewQueue

	Folder string
	// WorkDir holds rendered files and preview sources. Defaults to os.TempDir().
	WorkDir string

	NewID func() string
	Now   func() time.Time
}

// MediaHostConfig configures NewMediaHost.
type MediaHostConfig struct {
	Folder  string
	WorkDir string
}

// NewMediaHost wires a host over the provided collaborators.
func NewMediaHost(storage AssetStorage, prober MediaProber, renderer MediaRenderer, previews PreviewQueue, cfg MediaHostConfig) *MediaHost {
	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = DefaultFolder
	}
	return &MediaHost{
		Storage:  storage,
		Prober:   prober,
		Renderer: renderer,
		Previews: previews,
		Folder:   folder,
		WorkDir:  cfg.WorkDir,
	}
}

// Upload stores the file described by u, applying t first when it is not
// empty, and returns the stored asset.
func (h *MediaHost) Upload(ctx context.Context, u Upload, t Transformation) (models.Asset, error) {
	if h == nil || h.Prober == nil {
		return models.Asset{}, ErrHostUnavailable
	}
	if h.Storage == nil {
		return models.Asset{}, ErrAssetStorageUnavailable
	}
	if !strings.EqualFold(filepath.Ext(u.Filename), VideoExtension) {
		return models.Asset{}, fmt.Errorf("%q: %w", u.Filename, ErrUnsupportedFormat)
	}

	probe, err := h.Prober.Probe(ctx, u.Path)
	if err != nil {
		return models.Asset{}, err
	}
	if !probe.HasFormat("mp4") {
		return models.Asset{}, fmt.Errorf("%q is %s: %w", u.Filename, strings.Join(probe.Formats, ","), ErrUnsupportedFormat)
	}

	source := u.Path
	owned := false
	if !t.Empty() {
		if h.Renderer == nil {
			return models.Asset{}, ErrHostUnavailable
		}
		rendered, err := h.tempFile("render-*" + VideoExtension)
		if err != nil {
			return models.Asset{}, err
		}
		if err := h.Renderer.Render(ctx, u.Path, rendered, probe, t); err != nil {
			_ = os.Remove(rendered)
			return models.Asset{}, err
		}
		if probe, err = h.Prober.Probe(ctx, rendered); err != nil {
			_ = os.Remove(rendered)
			// A rendered ad that ffprobe rejects is a tooling failure.
			return models.Asset{}, fmt.Errorf("inspect rendered %s: %v", u.Filename, err)
		}
		source, owned = rendered, true
	}
	defer func() {
		if owned {
			_ = os.Remove(source)
		}
	}()

	publicID := path.Join(h.Folder, h.newID())
	url, size, err := h.store(ctx, source, publicID+VideoExtension, "video/mp4")
	if err != nil {
		return models.Asset{}, err
	}

	asset := models.Asset{
		PublicID:         publicID,
		SecureURL:        url,
		Duration:         probe.Duration,
		Width:            probe.Width,
		Height:           probe.Height,
		OriginalFilename: strings.TrimSuffix(filepath.Base(u.Filename), filepath.Ext(u.Filename)),
		Format:           strings.TrimPrefix(VideoExtension, "."),
		Bytes:            size,
		ResourceType:     "video",
		CreatedAt:        h.now().UTC(),
	}

	if h.enqueuePreview(ctx, publicID, source, owned) {
		owned = false
	}

	return asset, nil
}

// Delete removes the stored video and poster for every public id in a single
// batched call.
func (h *MediaHost) Delete(ctx context.Context, publicIDs []string) error {
	if h == nil {
		return ErrHostUnavailable
	}
	if h.Storage == nil {
		return ErrAssetStorageUnavailable
	}
	keys := make([]string, 0, 2*len(publicIDs))
	for _, id := range publicIDs {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if h.Previews != nil {
			h.Previews.Cancel(id)
		}
		keys = append(keys, id+VideoExtension, id+models.PosterExtension)
	}
	if len(keys) == 0 {
		return nil
	}
	return h.Storage.DeleteMany(ctx, keys)
}

func (h *MediaHost) store(ctx context.Context, src, key, contentType string) (string, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat %s: %w", src, err)
	}

	url, err := h.Storage.Save(ctx, key, f, contentType)
	if err != nil {
		return "", 0, err
	}
	return url, info.Size(), nil
}

// enqueuePreview hands a copy of src (or src itself when owned) to the preview
// queue. It reports whether ownership of src moved to the queue.
func (h *MediaHost) enqueuePreview(ctx context.Context, publicID, src string, owned bool) bool {
	if h.Previews == nil {
		return false
	}
	logger := logging.FromContext(ctx).With(slog.String("public_id", publicID))

	source := src
	if !owned {
		copied, err := h.copyToWorkDir(src)
		if err != nil {
			logger.Warn("preview skipped", slog.Any("error", err))
			return false
		}
		source = copied
	}

	if err := h.Previews.Enqueue(ctx, PreviewJob{PublicID: publicID, Source: source}); err != nil {
		logger.Warn("preview not queued", slog.Any("error", err))
		if !owned {
			_ = os.Remove(source)
		}
		return false
	}
	return true
}

func (h *MediaHost) copyToWorkDir(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(h.WorkDir, "preview-src-*"+VideoExtension)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func (h *MediaHost) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(h.WorkDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create work file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func (h *MediaHost) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *MediaHost) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
