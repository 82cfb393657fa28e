package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-itrp/jobs"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const checkpointCacheKeyPrefix = "go-itrp::export_checkpoint::v1"

type cachedCheckpoint struct {
	At    time.Time
	Found bool
}

// CachedCheckpointStore serves LastExport reads from a cache and drops the
// cached entry whenever a checkpoint is saved.
type CachedCheckpointStore struct {
	base  jobs.CheckpointStore
	cache repositorycache.CacheService
}

func NewCachedCheckpointStore(
	base jobs.CheckpointStore,
	cacheService repositorycache.CacheService,
) (*CachedCheckpointStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base checkpoint store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: checkpoint cache service is required")
	}
	return &CachedCheckpointStore{base: base, cache: cacheService}, nil
}

// CheckpointCacheKey returns go-itrp::export_checkpoint::v1::<types> with the
// normalized type list URL-path escaped.
func CheckpointCacheKey(types string) (string, error) {
	key := NormalizeTypes(types)
	if key == "" {
		return "", fmt.Errorf("sqlstore: export types are required")
	}
	return strings.Join([]string{checkpointCacheKeyPrefix, url.PathEscape(key)}, "::"), nil
}

func (s *CachedCheckpointStore) LastExport(ctx context.Context, types string) (time.Time, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return time.Time{}, false, fmt.Errorf("sqlstore: cached checkpoint store is not configured")
	}
	cacheKey, err := CheckpointCacheKey(types)
	if err != nil {
		return time.Time{}, false, err
	}

	checkpoint, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedCheckpoint, error) {
		at, found, fetchErr := s.base.LastExport(ctx, types)
		if fetchErr != nil {
			return cachedCheckpoint{}, fetchErr
		}
		return cachedCheckpoint{At: at, Found: found}, nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return checkpoint.At, checkpoint.Found, nil
}

func (s *CachedCheckpointStore) SaveExport(ctx context.Context, types string, at time.Time) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached checkpoint store is not configured")
	}
	cacheKey, err := CheckpointCacheKey(types)
	if err != nil {
		return err
	}
	if err := s.base.SaveExport(ctx, types, at); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
