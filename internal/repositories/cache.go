package repositories

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adreel/backend/internal/metrics"
	"github.com/adreel/backend/internal/models"
)

type cacheEntry struct {
	record  models.VideoRecord
	expires time.Time
}

// CachingRepository wraps another VideoRepository with a TTL cache for Get.
// Records are immutable, so entries only leave the cache on expiry or Delete.
type CachingRepository struct {
	base VideoRepository
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	items map[string]cacheEntry
	// deletions is bumped on every eviction of an id. A lookup only fills
	// the cache when the count is unchanged since it started.
	deletions map[string]uint64
}

// NewCachingRepository returns a repository that caches lookups for the provided TTL.
func NewCachingRepository(base VideoRepository, ttl time.Duration) *CachingRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingRepository{
		base:      base,
		ttl:       ttl,
		now:       time.Now,
		items:     make(map[string]cacheEntry),
		deletions: make(map[string]uint64),
	}
}

// List always reads through to the underlying repository.
func (c *CachingRepository) List(ctx context.Context) ([]models.VideoRecord, error) {
	return c.base.List(ctx)
}

// Get returns a cached record when available, otherwise it delegates to the
// underlying repository. Concurrent misses for one id share a single lookup.
func (c *CachingRepository) Get(ctx context.Context, id string) (models.VideoRecord, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		metrics.RecordCacheLookup(true)
		return entry.record, nil
	}
	metrics.RecordCacheLookup(false)

	v, err, _ := c.group.Do(id, func() (any, error) {
		c.mu.RLock()
		seen := c.deletions[id]
		c.mu.RUnlock()

		record, err := c.base.Get(ctx, id)
		if err != nil {
			return models.VideoRecord{}, err
		}

		c.mu.Lock()
		if c.deletions[id] == seen {
			c.items[id] = cacheEntry{record: record, expires: now.Add(c.ttl)}
		}
		c.mu.Unlock()
		return record, nil
	})
	if err != nil {
		return models.VideoRecord{}, err
	}
	return v.(models.VideoRecord), nil
}

// Insert writes through and primes the cache with the stored record.
func (c *CachingRepository) Insert(ctx context.Context, record models.VideoRecord) (models.VideoRecord, error) {
	stored, err := c.base.Insert(ctx, record)
	if err != nil {
		return models.VideoRecord{}, err
	}

	c.mu.Lock()
	c.items[stored.ID] = cacheEntry{record: stored, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return stored, nil
}

// Delete evicts the record around deleting it from the underlying repository.
// Lookups in flight while it runs do not repopulate the cache.
func (c *CachingRepository) Delete(ctx context.Context, id string) error {
	c.evict(id)
	c.group.Forget(id)
	err := c.base.Delete(ctx, id)
	c.evict(id)
	return err
}

func (c *CachingRepository) evict(id string) {
	c.mu.Lock()
	delete(c.items, id)
	c.deletions[id]++
	c.mu.Unlock()
}

var _ VideoRepository = (*CachingRepository)(nil)
