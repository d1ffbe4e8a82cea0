package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adreel/backend/internal/metrics"
	"github.com/adreel/backend/internal/models"
)

// PreviewJob asks for an animated poster of the asset with PublicID, rendered
// from the local file at Source. The renderer removes Source when done.
type PreviewJob struct {
	PublicID string
	Source   string
}

// PreviewRendererConfig controls the concurrency characteristics of the renderer.
type PreviewRendererConfig struct {
	QueueSize int
	Workers   int
	// JobTimeout bounds a single render and upload.
	JobTimeout time.Duration
}

// PreviewRenderer asynchronously renders and stores the .gif poster shown
// on the listing page.
type PreviewRenderer struct {
	renderer MediaRenderer
	storage  AssetStorage
	logger   *slog.Logger
	timeout  time.Duration

	jobs   chan PreviewJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// pending maps the public id of every queued or running job to whether
	// its asset was deleted in the meantime.
	pendingMu sync.Mutex
	pending   map[string]bool
}

var (
	errPreviewsClosed   = errors.New("preview renderer closed")
	errPreviewQueueFull = errors.New("preview queue full")
	errPreviewCanceled  = errors.New("preview canceled")
)

// NewPreviewRenderer starts a background worker pool that renders previews.
func NewPreviewRenderer(renderer MediaRenderer, storage AssetStorage, cfg PreviewRendererConfig, logger *slog.Logger) *PreviewRenderer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &PreviewRenderer{
		renderer: renderer,
		storage:  storage,
		logger:   logger,
		timeout:  cfg.JobTimeout,
		jobs:     make(chan PreviewJob, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]bool),
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Enqueue schedules a preview render. It never blocks: a full queue is an error.
func (p *PreviewRenderer) Enqueue(ctx context.Context, job PreviewJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPreviewsClosed
	}

	p.pendingMu.Lock()
	p.pending[job.PublicID] = false
	p.pendingMu.Unlock()

	select {
	case p.jobs <- job:
		metrics.SetPreviewQueueDepth(len(p.jobs))
		return nil
	default:
		p.finish(job.PublicID)
		metrics.IncPreview("dropped")
		return errPreviewQueueFull
	}
}

// Cancel marks the queued or running job for publicID as obsolete. Its poster
// is not stored, or is removed again if the upload already happened.
func (p *PreviewRenderer) Cancel(publicID string) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if _, ok := p.pending[publicID]; ok {
		p.pending[publicID] = true
	}
}

func (p *PreviewRenderer) canceled(publicID string) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return p.pending[publicID]
}

func (p *PreviewRenderer) finish(publicID string) {
	p.pendingMu.Lock()
	delete(p.pending, publicID)
	p.pendingMu.Unlock()
}

// Shutdown stops accepting jobs and waits for queued jobs to finish. When ctx
// expires first, in-flight renders are canceled and the remaining jobs only
// clean up their files.
func (p *PreviewRenderer) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *PreviewRenderer) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		metrics.SetPreviewQueueDepth(len(p.jobs))
		p.handleJob(job)
	}
}

func (p *PreviewRenderer) handleJob(job PreviewJob) {
	defer os.Remove(job.Source)
	defer p.finish(job.PublicID)

	logger := p.logger.With(slog.String("public_id", job.PublicID))
	if p.renderer == nil || p.storage == nil {
		logger.Error("preview renderer missing dependencies", "hasRenderer", p.renderer != nil, "hasStorage", p.storage != nil)
		metrics.IncPreview("failure")
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	if err := p.render(ctx, job); err != nil {
		if errors.Is(err, errPreviewCanceled) {
			logger.Info("preview dropped for deleted asset")
			metrics.IncPreview("canceled")
			return
		}
		logger.Error("preview render failed", slog.Any("error", err))
		metrics.IncPreview("failure")
		return
	}
	metrics.IncPreview("success")
}

func (p *PreviewRenderer) render(ctx context.Context, job PreviewJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(filepath.Dir(job.Source), filepath.Base(job.Source)+models.PosterExtension)
	defer os.Remove(dst)

	if err := p.renderer.Preview(ctx, job.Source, dst); err != nil {
		return err
	}

	if p.canceled(job.PublicID) {
		return errPreviewCanceled
	}

	f, err := os.Open(dst)
	if err != nil {
		return fmt.Errorf("open preview: %w", err)
	}
	defer f.Close()

	key := job.PublicID + models.PosterExtension
	if _, err := p.storage.Save(ctx, key, f, "image/gif"); err != nil {
		return fmt.Errorf("store preview: %w", err)
	}

	// The asset may have been deleted while the poster was uploading.
	if p.canceled(job.PublicID) {
		if err := p.storage.DeleteMany(ctx, []string{key}); err != nil {
			return fmt.Errorf("remove preview of deleted asset: %w", err)
		}
		return errPreviewCanceled
	}
	return nil
}
