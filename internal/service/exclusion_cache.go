package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/repository"
	"strategy-lab/pkg/logger"
)

// ExclusionCache is the registry of excluded strategies and dropout counters.
// Mutations stay in memory until Save.
type ExclusionCache interface {
	ShouldExclude(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition) (bool, error)
	Penalty(ctx context.Context, spec dto.StrategySpec) (float64, error)
	RecordDropout(ctx context.Context, spec dto.StrategySpec, event dto.DropoutEvent) (int, error)
	AddPermanentExclusion(ctx context.Context, spec dto.StrategySpec) error
	AddMarketExclusion(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition) error
	Snapshot(ctx context.Context) *dto.ExclusionRegistry
	Info(ctx context.Context, spec dto.StrategySpec) (dto.ExclusionInfo, error)
	Stats(ctx context.Context) dto.ExclusionStats
	Save(ctx context.Context) error
	Reset()
}

type exclusionCounters struct {
	permanentHits    atomic.Int64
	marketHits       atomic.Int64
	penaltiesApplied atomic.Int64
	dropoutsRecorded atomic.Int64
	promotions       atomic.Int64
}

type exclusionCache struct {
	log   *logger.Logger
	keys  codec.StrategyKeyCodec
	store repository.ExclusionRepository

	mu       sync.RWMutex
	loaded   bool
	registry *dto.ExclusionRegistry
	counters *exclusionCounters
}

func NewExclusionCache(log *logger.Logger, keys codec.StrategyKeyCodec, store repository.ExclusionRepository) ExclusionCache {
	return &exclusionCache{
		log:      log,
		keys:     keys,
		store:    store,
		registry: dto.NewExclusionRegistry(),
		counters: &exclusionCounters{},
	}
}

// ensureLoaded must be called without holding mu.
func (c *exclusionCache) ensureLoaded(ctx context.Context) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true

	snap, err := c.store.LoadExclusionSnapshot(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to load exclusion snapshot, starting with an empty registry", logger.ErrorField(err))
		c.registry = dto.NewExclusionRegistry()
		return
	}
	c.registry = registryFromSnapshot(snap)

	promoted := 0
	for key, count := range c.registry.DropoutCounts {
		if count >= dto.PromotionThreshold {
			c.registry.Permanent.Add(key)
			delete(c.registry.DropoutCounts, key)
			promoted++
		}
	}
	if promoted > 0 {
		c.counters.promotions.Add(int64(promoted))
		c.log.InfoContext(ctx, "Promoted saturated dropout counters on load", logger.IntField("promoted", promoted))
	}

	c.log.InfoContext(ctx, "Exclusion registry loaded",
		logger.IntField("permanent", len(c.registry.Permanent)),
		logger.IntField("market", c.registry.MarketExcludedCount()),
		logger.IntField("dropouts", len(c.registry.DropoutCounts)),
	)
}

func (c *exclusionCache) ShouldExclude(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition) (bool, error) {
	key, err := c.keys.Encode(spec)
	if err != nil {
		return false, err
	}
	c.ensureLoaded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.registry.Permanent.Has(key) {
		c.counters.permanentHits.Add(1)
		return true, nil
	}
	if c.registry.ByMarket[condition].Has(key) {
		c.counters.marketHits.Add(1)
		return true, nil
	}
	return false, nil
}

func (c *exclusionCache) Penalty(ctx context.Context, spec dto.StrategySpec) (float64, error) {
	key, err := c.keys.Encode(spec)
	if err != nil {
		return 0, err
	}
	c.ensureLoaded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	penalty := c.registry.Penalty(key)
	if penalty > 0 {
		c.counters.penaltiesApplied.Add(1)
	}
	return penalty, nil
}

// RecordDropout returns the counter after the increment. A return of
// PromotionThreshold or more means the strategy was made permanent.
func (c *exclusionCache) RecordDropout(ctx context.Context, spec dto.StrategySpec, event dto.DropoutEvent) (int, error) {
	key, err := c.keys.Encode(spec)
	if err != nil {
		return 0, err
	}
	c.ensureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.dropoutsRecorded.Add(1)

	if c.registry.Permanent.Has(key) {
		return dto.PromotionThreshold, nil
	}

	count := c.registry.DropoutCounts[key] + 1
	if count >= dto.PromotionThreshold {
		c.registry.Permanent.Add(key)
		delete(c.registry.DropoutCounts, key)
		c.counters.promotions.Add(1)
		c.log.InfoContext(ctx, "Strategy permanently excluded",
			logger.StringField("key", key.String()),
			logger.StringField("reason", string(event.Reason)),
			logger.StringField("condition", string(event.Condition)),
			logger.IntField("dropouts", count),
		)
		return count, nil
	}

	c.registry.DropoutCounts[key] = count
	c.log.DebugContext(ctx, "Dropout recorded",
		logger.StringField("key", key.String()),
		logger.StringField("reason", string(event.Reason)),
		logger.Float64Field("final_return", event.FinalReturn),
		logger.IntField("day", event.Day),
		logger.IntField("dropouts", count),
	)
	return count, nil
}

func (c *exclusionCache) AddPermanentExclusion(ctx context.Context, spec dto.StrategySpec) error {
	key, err := c.keys.Encode(spec)
	if err != nil {
		return err
	}
	c.ensureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Permanent.Add(key)
	delete(c.registry.DropoutCounts, key)
	return nil
}

func (c *exclusionCache) AddMarketExclusion(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition) error {
	if !condition.IsValid() {
		return &dto.ValidationError{Field: "condition", Reason: fmt.Sprintf("unknown market condition %q", condition)}
	}
	key, err := c.keys.Encode(spec)
	if err != nil {
		return err
	}
	c.ensureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry.ByMarket[condition] == nil {
		c.registry.ByMarket[condition] = dto.KeySet{}
	}
	c.registry.ByMarket[condition].Add(key)
	return nil
}

func (c *exclusionCache) Snapshot(ctx context.Context) *dto.ExclusionRegistry {
	c.ensureLoaded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Clone()
}

func (c *exclusionCache) Info(ctx context.Context, spec dto.StrategySpec) (dto.ExclusionInfo, error) {
	key, err := c.keys.Encode(spec)
	if err != nil {
		return dto.ExclusionInfo{}, err
	}
	c.ensureLoaded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	info := dto.ExclusionInfo{
		Key:          key,
		DropoutCount: c.registry.DropoutCount(key),
		Penalty:      c.registry.Penalty(key),
		Permanent:    c.registry.Permanent.Has(key),
	}
	for _, m := range dto.MarketConditions() {
		if c.registry.ByMarket[m].Has(key) {
			info.ExcludedInMarket = append(info.ExcludedInMarket, m)
		}
	}
	return info, nil
}

func (c *exclusionCache) Stats(ctx context.Context) dto.ExclusionStats {
	c.ensureLoaded(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return dto.ExclusionStats{
		PermanentHits:    c.counters.permanentHits.Load(),
		MarketHits:       c.counters.marketHits.Load(),
		PenaltiesApplied: c.counters.penaltiesApplied.Load(),
		DropoutsRecorded: c.counters.dropoutsRecorded.Load(),
		Promotions:       c.counters.promotions.Load(),
		TotalPermanent:   len(c.registry.Permanent),
		TotalMarket:      c.registry.MarketExcludedCount(),
		TotalDropouts:    len(c.registry.DropoutCounts),
	}
}

func (c *exclusionCache) Save(ctx context.Context) error {
	c.ensureLoaded(ctx)

	c.mu.RLock()
	snap := snapshotFromRegistry(c.registry)
	c.mu.RUnlock()

	if err := c.store.SaveExclusionSnapshot(ctx, snap); err != nil {
		c.log.ErrorContext(ctx, "Failed to save exclusion snapshot", logger.ErrorField(err))
		return err
	}
	return nil
}

func (c *exclusionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.registry = dto.NewExclusionRegistry()
	c.counters = &exclusionCounters{}
}

func registryFromSnapshot(snap *dto.ExclusionSnapshot) *dto.ExclusionRegistry {
	reg := dto.NewExclusionRegistry()
	reg.Permanent = snap.Permanent.Clone()
	for code, set := range snap.ByMarket {
		if m, ok := dto.MarketConditionFromCode(code); ok {
			reg.ByMarket[m] = set.Clone()
		}
	}
	for k, v := range snap.DropoutCounts {
		reg.DropoutCounts[k] = v
	}
	return reg
}

func snapshotFromRegistry(reg *dto.ExclusionRegistry) *dto.ExclusionSnapshot {
	snap := dto.NewExclusionSnapshot()
	snap.Permanent = reg.Permanent.Clone()
	for m, set := range reg.ByMarket {
		if len(set) > 0 {
			snap.ByMarket[m.Code()] = set.Clone()
		}
	}
	for k, v := range reg.DropoutCounts {
		snap.DropoutCounts[k] = v
	}
	return snap
}
