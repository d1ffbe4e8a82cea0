package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FSStorage implements videos.AssetStorage on the local filesystem. Assets are
// served by the HTTP server under baseURL.
type FSStorage struct {
	root    string
	baseURL string
}

// NewFSStorage stores assets below root and reports URLs below baseURL.
func NewFSStorage(root, baseURL string) (*FSStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("fs storage: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs storage: create root: %w", err)
	}
	return &FSStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root is the directory assets are written to.
func (s *FSStorage) Root() string {
	return s.root
}

// Save writes the content atomically and returns its URL.
func (s *FSStorage) Save(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("fs storage: create directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("fs storage: create %s: %w", key, err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, r); err != nil {
		return "", fmt.Errorf("fs storage: write %s: %w", key, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("fs storage: commit %s: %w", key, err)
	}

	return s.baseURL + "/" + clean, nil
}

// DeleteMany removes the provided keys. Missing files are ignored.
func (s *FSStorage) DeleteMany(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		clean, err := cleanKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean))); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("fs storage: delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// cleanKey normalises key to a slash-separated path that cannot leave the root.
func cleanKey(key string) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(key)), "/")
	if clean == "" {
		return "", errors.New("fs storage: empty key")
	}
	return clean, nil
}
