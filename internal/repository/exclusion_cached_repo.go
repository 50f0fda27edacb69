package repository

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/dto"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/common"
)

type cachedExclusionRepository struct {
	next       ExclusionRepository
	cache      cache.Cache
	key        string
	expiration time.Duration
}

// NewCachedExclusionRepository memoises the loaded snapshot under name.
// Callers always receive a copy.
func NewCachedExclusionRepository(next ExclusionRepository, c cache.Cache, name string, expiration time.Duration) ExclusionRepository {
	return &cachedExclusionRepository{
		next:       next,
		cache:      c,
		key:        fmt.Sprintf(common.KEY_EXCLUSION_SNAPSHOT, name),
		expiration: expiration,
	}
}

func (r *cachedExclusionRepository) LoadExclusionSnapshot(ctx context.Context) (*dto.ExclusionSnapshot, error) {
	if snap, ok := cache.GetFromCache[*dto.ExclusionSnapshot](r.cache, r.key); ok {
		return snap.Clone(), nil
	}

	snap, err := r.next.LoadExclusionSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(r.key, snap.Clone(), r.expiration)
	return snap, nil
}

func (r *cachedExclusionRepository) SaveExclusionSnapshot(ctx context.Context, snap *dto.ExclusionSnapshot) error {
	r.cache.Delete(r.key)
	return r.next.SaveExclusionSnapshot(ctx, snap)
}
