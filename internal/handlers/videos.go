package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/adreel/backend/internal/logging"
	"github.com/adreel/backend/internal/videos"
)

const (
	// DefaultMaxUploadBytes bounds a whole multipart upload request.
	DefaultMaxUploadBytes int64 = 512 << 20
	// multipartMemory is the part of a form kept in memory before spilling to disk.
	multipartMemory = 32 << 20

	fieldVideo   = "video"
	fieldAdVideo = "adVideo"
)

// VideoHandler serves the video record API.
type VideoHandler struct {
	Videos  VideoService
	Limiter RateLimiter
	// TrustProxy keys the limiter on X-Forwarded-For.
	TrustProxy     bool
	MaxUploadBytes int64
	// UploadDir receives uploaded files while they are processed.
	UploadDir string
}

// Collection handles GET and POST /api/videos.
func (h VideoHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		respondMethodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
	}
}

// Item handles GET and DELETE /api/videos/{id}.
func (h VideoHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		respondMethodNotAllowed(r.Context(), w, http.MethodGet, http.MethodDelete)
	}
}

func (h VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondError(ctx, w, errVideosUnavailable)
		return
	}

	records, err := h.Videos.List(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondSuccess(ctx, w, records)
}

func (h VideoHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondError(ctx, w, errVideosUnavailable)
		return
	}

	record, err := h.Videos.Get(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondSuccess(ctx, w, record)
}

func (h VideoHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondError(ctx, w, errVideosUnavailable)
		return
	}

	if err := h.Videos.Delete(ctx, r.PathValue("id")); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, envelope{Message: messageSuccess})
}

func (h VideoHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		respondError(ctx, w, errVideosUnavailable)
		return
	}
	if rejectIfLimited(h.Limiter, h.TrustProxy, w, r, uploadScope) {
		return
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.Warn("invalid upload form", "error", err)
		respondError(ctx, w, invalidForm(err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("remove multipart files", "error", err)
		}
	}()

	primary, err := h.spool(r, fieldVideo)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer h.discard(logger, primary)

	ad, err := h.spool(r, fieldAdVideo)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer h.discard(logger, ad)

	record, err := h.Videos.Create(ctx, primary, ad)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondSuccess(ctx, w, record)
}

// spool copies the named form file to UploadDir so it can be probed by path.
// A missing field yields an empty Upload, which the service rejects.
func (h VideoHandler) spool(r *http.Request, field string) (videos.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return videos.Upload{}, nil
	}
	if err != nil {
		return videos.Upload{}, invalidForm(err)
	}
	defer file.Close()

	return h.writeTemp(file, header)
}

func (h VideoHandler) writeTemp(file multipart.File, header *multipart.FileHeader) (videos.Upload, error) {
	if h.UploadDir != "" {
		if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
			return videos.Upload{}, fmt.Errorf("create upload dir: %w", err)
		}
	}
	out, err := os.CreateTemp(h.UploadDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return videos.Upload{}, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return videos.Upload{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return videos.Upload{}, fmt.Errorf("close upload file: %w", err)
	}
	return videos.Upload{Path: out.Name(), Filename: header.Filename}, nil
}

func (h VideoHandler) discard(logger *slog.Logger, u videos.Upload) {
	if u.Path == "" {
		return
	}
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove upload file", "path", u.Path, "error", err)
	}
}

var errVideosUnavailable = errors.New("video service unavailable")

// invalidForm tags a multipart failure as a validation error unless the
// body exceeded the size limit.
func invalidForm(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("upload exceeds %d bytes: %w", tooLarge.Limit, err)
	}
	return &videos.Error{Kind: videos.KindValidation, Op: "parse upload", Err: err}
}
