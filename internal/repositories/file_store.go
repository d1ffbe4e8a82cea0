package repositories

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/adreel/backend/internal/metrics"
	"github.com/adreel/backend/internal/models"
)

const (
	// corruptThreshold is the share of unreadable lines tolerated when loading.
	corruptThreshold = 0.1
	// compactAfter is the number of dead lines that triggers a rewrite.
	compactAfter = 64
	maxLineSize  = 4 * 1024 * 1024
)

// fileLine is the on-disk shape of a record or a deletion marker.
type fileLine struct {
	Deleted bool `json:"$$deleted,omitempty"`
	models.VideoRecord
}

type deletionMarker struct {
	Deleted bool   `json:"$$deleted"`
	ID      string `json:"_id"`
}

// FileVideoRepository stores records as JSON lines in an append-only file.
// Deletions append a marker; the file is compacted on open and once enough
// markers accumulate.
type FileVideoRepository struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	file    *os.File
	records map[string]models.VideoRecord
	order   []string
	dead    int

	NewID   func() string
	NowFunc func() time.Time
}

// OpenFileVideoRepository loads the data file at path, creating it when
// missing, and holds an exclusive lock on it until Close.
func OpenFileVideoRepository(path string) (*FileVideoRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data file: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	r := &FileVideoRepository{
		path:    path,
		lock:    lock,
		records: make(map[string]models.VideoRecord),
	}

	if err := r.load(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := r.compactLocked(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return r, nil
}

func (r *FileVideoRepository) load() error {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var total, corrupt int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var entry fileLine
		if err := json.Unmarshal(line, &entry); err != nil || entry.ID == "" {
			corrupt++
			continue
		}

		if entry.Deleted {
			r.removeLocked(entry.ID)
			continue
		}
		r.putLocked(entry.VideoRecord)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read data file: %w", err)
	}

	if total > 0 && float64(corrupt)/float64(total) > corruptThreshold {
		return fmt.Errorf("data file %s: %d of %d lines unreadable", r.path, corrupt, total)
	}
	return nil
}

// List returns every record in insertion order.
func (r *FileVideoRepository) List(ctx context.Context) ([]models.VideoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.VideoRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out, nil
}

// Get returns the record with the provided id.
func (r *FileVideoRepository) Get(ctx context.Context, id string) (models.VideoRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.VideoRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return models.VideoRecord{}, ErrNotFound
	}
	return record, nil
}

// Insert appends a new record, assigning an id and creation time when unset.
func (r *FileVideoRepository) Insert(ctx context.Context, record models.VideoRecord) (models.VideoRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.VideoRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = r.newID()
	}
	if _, exists := r.records[record.ID]; exists {
		return models.VideoRecord{}, ErrConflict
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	if err := r.appendLocked(record.ID, record); err != nil {
		return models.VideoRecord{}, err
	}
	r.putLocked(record)
	return record, nil
}

// Delete appends a deletion marker for the record.
func (r *FileVideoRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}

	if err := r.appendLocked(id, deletionMarker{Deleted: true, ID: id}); err != nil {
		return err
	}
	r.removeLocked(id)
	r.dead += 2

	if r.dead >= compactAfter {
		return r.compactLocked()
	}
	return nil
}

// Compact rewrites the data file so it only holds live records.
func (r *FileVideoRepository) Compact() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compactLocked()
}

// Close releases the data file and its lock.
func (r *FileVideoRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.file != nil {
		errs = append(errs, r.file.Close())
		r.file = nil
	}
	errs = append(errs, r.lock.Unlock())
	return errors.Join(errs...)
}

func (r *FileVideoRepository) appendLocked(id string, entry any) error {
	if r.file == nil {
		return errors.New("record store closed")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	data = append(data, '\n')

	if _, err := r.file.Write(data); err != nil {
		return fmt.Errorf("append record %s: %w", id, err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("sync data file: %w", err)
	}
	return nil
}

func (r *FileVideoRepository) compactLocked() error {
	pending, err := renameio.NewPendingFile(r.path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending data file: %w", err)
	}
	defer pending.Cleanup()

	if err := r.writeLiveLocked(pending); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	if r.file != nil {
		_ = r.file.Close()
	}
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		r.file = nil
		return fmt.Errorf("reopen data file: %w", err)
	}
	r.file = f
	r.dead = 0
	metrics.IncCompaction()
	return nil
}

func (r *FileVideoRepository) writeLiveLocked(w io.Writer) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for _, id := range r.order {
		if err := enc.Encode(r.records[id]); err != nil {
			return fmt.Errorf("encode record %s: %w", id, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	return nil
}

func (r *FileVideoRepository) putLocked(record models.VideoRecord) {
	if _, exists := r.records[record.ID]; !exists {
		r.order = append(r.order, record.ID)
	} else {
		r.dead++
	}
	r.records[record.ID] = record
}

func (r *FileVideoRepository) removeLocked(id string) {
	if _, ok := r.records[id]; !ok {
		return
	}
	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *FileVideoRepository) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *FileVideoRepository) now() time.Time {
	if r.NowFunc != nil {
		return r.NowFunc()
	}
	return time.Now().UTC()
}

var _ VideoRepository = (*FileVideoRepository)(nil)
