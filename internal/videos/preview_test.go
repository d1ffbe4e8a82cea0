package videos

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdown(t *testing.T, p *PreviewRenderer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestPreviewRendererStoresPoster(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	storage := &memoryStorage{}
	renderer := NewPreviewRenderer(&stubRenderer{}, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	src := writeClip(t, "preview-src.mp4", "clip")
	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "videos-with-ads/abc", Source: src}))
	shutdown(t, renderer)

	data, ok := storage.get("videos-with-ads/abc.gif")
	require.True(t, ok, "poster stored next to the video key")
	assert.Equal(t, "GIF89a", string(data))

	_, err := os.Stat(src)
	assert.ErrorIs(t, err, os.ErrNotExist, "source removed after render")
	_, err = os.Stat(src + ".gif")
	assert.ErrorIs(t, err, os.ErrNotExist, "rendered gif removed after upload")
}

func TestPreviewRendererFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	storage := &memoryStorage{}
	failing := &stubRenderer{preview: func(ctx context.Context, src, dst string) error {
		return errors.New("ffmpeg: exit status 1")
	}}
	renderer := NewPreviewRenderer(failing, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	src := writeClip(t, "preview-src.mp4", "clip")
	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "videos-with-ads/abc", Source: src}))
	shutdown(t, renderer)

	assert.Empty(t, storage.saved)
	_, err := os.Stat(src)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPreviewRendererRejectsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	renderer := NewPreviewRenderer(&stubRenderer{}, &memoryStorage{}, PreviewRendererConfig{Workers: 2}, quietLogger())
	shutdown(t, renderer)
	shutdown(t, renderer)

	err := renderer.Enqueue(context.Background(), PreviewJob{PublicID: "a", Source: "missing"})
	assert.ErrorIs(t, err, errPreviewsClosed)
}

func TestPreviewRendererQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	blocking := &stubRenderer{preview: func(ctx context.Context, src, dst string) error {
		started <- struct{}{}
		<-release
		return os.WriteFile(dst, []byte("GIF89a"), 0o600)
	}}
	storage := &memoryStorage{}
	renderer := NewPreviewRenderer(blocking, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	ctx := context.Background()
	require.NoError(t, renderer.Enqueue(ctx, PreviewJob{PublicID: "one", Source: writeClip(t, "one.mp4", "1")}))
	<-started
	require.NoError(t, renderer.Enqueue(ctx, PreviewJob{PublicID: "two", Source: writeClip(t, "two.mp4", "2")}))

	err := renderer.Enqueue(ctx, PreviewJob{PublicID: "three", Source: writeClip(t, "three.mp4", "3")})
	assert.ErrorIs(t, err, errPreviewQueueFull)

	close(release)
	<-started
	shutdown(t, renderer)

	_, ok := storage.get("one.gif")
	assert.True(t, ok)
	_, ok = storage.get("two.gif")
	assert.True(t, ok)
}

func TestPreviewRendererShutdownDeadlineCancelsRenders(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	waiting := &stubRenderer{preview: func(ctx context.Context, src, dst string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	renderer := NewPreviewRenderer(waiting, &memoryStorage{}, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "slow", Source: writeClip(t, "slow.mp4", "s")}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, renderer.Shutdown(ctx), context.DeadlineExceeded)
}

func TestPreviewRendererEnqueueCanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	renderer := NewPreviewRenderer(&stubRenderer{}, &memoryStorage{}, PreviewRendererConfig{}, quietLogger())
	defer shutdown(t, renderer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, renderer.Enqueue(ctx, PreviewJob{PublicID: "a"}), context.Canceled)
}

func TestPreviewRendererCancelDuringRender(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started, release := make(chan struct{}), make(chan struct{})
	blocking := &stubRenderer{preview: func(ctx context.Context, src, dst string) error {
		close(started)
		<-release
		return os.WriteFile(dst, []byte("GIF89a"), 0o600)
	}}
	storage := &memoryStorage{}
	renderer := NewPreviewRenderer(blocking, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "videos-with-ads/abc", Source: writeClip(t, "abc.mp4", "clip")}))
	<-started
	renderer.Cancel("videos-with-ads/abc")
	close(release)
	shutdown(t, renderer)

	assert.Empty(t, storage.saved, "no poster for a deleted asset")
	assert.Empty(t, storage.deletes)
}

// gatedStorage holds Save until released.
type gatedStorage struct {
	*memoryStorage
	saving, release chan struct{}
}

func (s *gatedStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	close(s.saving)
	<-s.release
	return s.memoryStorage.Save(ctx, key, r, contentType)
}

func TestPreviewRendererCancelDuringUpload(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	storage := &gatedStorage{memoryStorage: &memoryStorage{}, saving: make(chan struct{}), release: make(chan struct{})}
	renderer := NewPreviewRenderer(&stubRenderer{}, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "videos-with-ads/abc", Source: writeClip(t, "abc.mp4", "clip")}))
	<-storage.saving
	renderer.Cancel("videos-with-ads/abc")
	close(storage.release)
	shutdown(t, renderer)

	assert.Equal(t, [][]string{{"videos-with-ads/abc.gif"}}, storage.deletes, "late poster removed again")
}

func TestPreviewRendererCancelUnknownID(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	storage := &memoryStorage{}
	renderer := NewPreviewRenderer(&stubRenderer{}, storage, PreviewRendererConfig{QueueSize: 1, Workers: 1}, quietLogger())

	renderer.Cancel("videos-with-ads/abc")
	require.NoError(t, renderer.Enqueue(context.Background(), PreviewJob{PublicID: "videos-with-ads/abc", Source: writeClip(t, "abc.mp4", "clip")}))
	shutdown(t, renderer)

	_, ok := storage.get("videos-with-ads/abc.gif")
	assert.True(t, ok, "a cancel with nothing pending does not affect later jobs")
	assert.Empty(t, renderer.pending)
}
