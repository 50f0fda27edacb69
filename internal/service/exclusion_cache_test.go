package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/repository"
	"strategy-lab/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	snap    *dto.ExclusionSnapshot
	loadErr error
	saveErr error
	loads   int
	saved   *dto.ExclusionSnapshot
}

func (s *stubStore) LoadExclusionSnapshot(context.Context) (*dto.ExclusionSnapshot, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.snap == nil {
		return dto.NewExclusionSnapshot(), nil
	}
	return s.snap.Clone(), nil
}

func (s *stubStore) SaveExclusionSnapshot(_ context.Context, snap *dto.ExclusionSnapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = snap.Clone()
	return nil
}

func lumpSum(stop, target float64) dto.StrategySpec {
	return dto.StrategySpec{
		BuyRule:           dto.BuyRuleOpenEntry,
		PurchaseMode:      dto.PurchaseModePercent,
		PurchaseQuantity:  0.5,
		StopLossThreshold: stop,
		SellRule:          dto.SellRuleLumpSum,
		Profit:            dto.TargetProfit(target),
	}
}

func mustKey(t *testing.T, spec dto.StrategySpec) dto.StrategyKey {
	t.Helper()
	key, err := codec.NewCodec(nil).Encode(spec)
	require.NoError(t, err)
	return key
}

func TestRecordDropoutPromotes(t *testing.T) {
	ctx := context.Background()
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), &stubStore{})
	spec := lumpSum(-5, 3)
	event := dto.DropoutEvent{Reason: dto.ExitStopLoss, Condition: dto.MarketBear}

	for i := 1; i < dto.PromotionThreshold; i++ {
		count, err := cache.RecordDropout(ctx, spec, event)
		require.NoError(t, err)
		assert.Equal(t, i, count)

		excluded, err := cache.ShouldExclude(ctx, spec, dto.MarketBear)
		require.NoError(t, err)
		assert.False(t, excluded)
	}

	penalty, err := cache.Penalty(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 18.0, penalty)

	count, err := cache.RecordDropout(ctx, spec, event)
	require.NoError(t, err)
	assert.Equal(t, dto.PromotionThreshold, count)

	for _, m := range dto.MarketConditions() {
		excluded, err := cache.ShouldExclude(ctx, spec, m)
		require.NoError(t, err)
		assert.True(t, excluded, m)
	}

	info, err := cache.Info(ctx, spec)
	require.NoError(t, err)
	assert.True(t, info.Permanent)
	assert.Equal(t, 0, info.DropoutCount)
	assert.Equal(t, 0.0, info.Penalty)

	stats := cache.Stats(ctx)
	assert.Equal(t, int64(1), stats.Promotions)
	assert.Equal(t, int64(dto.PromotionThreshold), stats.DropoutsRecorded)
	assert.Equal(t, 1, stats.TotalPermanent)
	assert.Equal(t, 0, stats.TotalDropouts)
}

func TestLoadPromotesSaturatedCounters(t *testing.T) {
	ctx := context.Background()
	saturated := lumpSum(-5, 3)
	partial := lumpSum(-6, 3)
	snap := dto.NewExclusionSnapshot()
	snap.DropoutCounts[mustKey(t, saturated)] = 12
	snap.DropoutCounts[mustKey(t, partial)] = 4
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), &stubStore{snap: snap})

	for _, m := range dto.MarketConditions() {
		excluded, err := cache.ShouldExclude(ctx, saturated, m)
		require.NoError(t, err)
		assert.True(t, excluded, "saturated under %s", m)

		excluded, err = cache.ShouldExclude(ctx, partial, m)
		require.NoError(t, err)
		assert.False(t, excluded, "partial under %s", m)
	}

	penalty, err := cache.Penalty(ctx, partial)
	require.NoError(t, err)
	assert.Equal(t, 8.0, penalty)
	assert.Equal(t, int64(1), cache.Stats(ctx).Promotions)
}

func TestShouldExcludeScopes(t *testing.T) {
	ctx := context.Background()
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), &stubStore{})
	marketOnly := lumpSum(-5, 3)
	permanent := lumpSum(-7, 3)

	require.NoError(t, cache.AddMarketExclusion(ctx, marketOnly, dto.MarketBear))
	require.NoError(t, cache.AddPermanentExclusion(ctx, permanent))

	tests := []struct {
		spec      dto.StrategySpec
		condition dto.MarketCondition
		expected  bool
	}{
		{marketOnly, dto.MarketBear, true},
		{marketOnly, dto.MarketBull, false},
		{permanent, dto.MarketBull, true},
		{permanent, dto.MarketBear, true},
		{lumpSum(-8, 3), dto.MarketBear, false},
	}
	for _, tt := range tests {
		got, err := cache.ShouldExclude(ctx, tt.spec, tt.condition)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}

	stats := cache.Stats(ctx)
	assert.Equal(t, int64(2), stats.PermanentHits)
	assert.Equal(t, int64(1), stats.MarketHits)
	assert.Equal(t, 1, stats.TotalMarket)

	info, err := cache.Info(ctx, marketOnly)
	require.NoError(t, err)
	assert.Equal(t, []dto.MarketCondition{dto.MarketBear}, info.ExcludedInMarket)

	err = cache.AddMarketExclusion(ctx, marketOnly, dto.MarketCondition("crash"))
	assert.True(t, errors.Is(err, dto.ErrValidation))
}

func TestInvalidSpecIsRejected(t *testing.T) {
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), &stubStore{})

	_, err := cache.ShouldExclude(context.Background(), lumpSum(5, 3), dto.MarketBull)

	assert.True(t, errors.Is(err, dto.ErrValidation))
}

func TestLoadFailureFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{loadErr: &dto.PersistenceError{Op: "load", Err: errors.New("corrupt")}}
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), store)

	excluded, err := cache.ShouldExclude(ctx, lumpSum(-5, 3), dto.MarketBull)
	require.NoError(t, err)
	assert.False(t, excluded)

	_, err = cache.ShouldExclude(ctx, lumpSum(-5, 3), dto.MarketBull)
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)
}

func TestSaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{saveErr: &dto.PersistenceError{Op: "save", Err: errors.New("read-only")}}
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), store)
	spec := lumpSum(-5, 3)

	_, err := cache.RecordDropout(ctx, spec, dto.DropoutEvent{Reason: dto.ExitStopLoss})
	require.NoError(t, err)

	err = cache.Save(ctx)
	assert.True(t, errors.Is(err, dto.ErrPersistence))

	info, err := cache.Info(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 1, info.DropoutCount)
}

func TestSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), &stubStore{})
	spec := lumpSum(-5, 3)
	_, err := cache.RecordDropout(ctx, spec, dto.DropoutEvent{Reason: dto.ExitStopLoss})
	require.NoError(t, err)

	snap := cache.Snapshot(ctx)
	key := mustKey(t, spec)
	assert.Equal(t, 2.0, snap.Penalty(key))

	snap.DropoutCounts[key] = 50
	snap.Permanent.Add(key)

	excluded, err := cache.ShouldExclude(ctx, spec, dto.MarketBull)
	require.NoError(t, err)
	assert.False(t, excluded)
	penalty, err := cache.Penalty(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, 2.0, penalty)
}

func TestSaveAndReloadThroughFileStore(t *testing.T) {
	ctx := context.Background()
	keys := codec.NewCodec(nil)
	path := filepath.Join(t.TempDir(), "exclusions.msgpack")
	store := repository.NewExclusionFileRepository(path, keys, logger.NewNop())

	first := NewExclusionCache(logger.NewNop(), keys, store)
	require.NoError(t, first.AddPermanentExclusion(ctx, lumpSum(-5, 3)))
	require.NoError(t, first.AddMarketExclusion(ctx, lumpSum(-6, 3), dto.MarketVolatile))
	_, err := first.RecordDropout(ctx, lumpSum(-7, 3), dto.DropoutEvent{Reason: dto.ExitStopLoss})
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx))

	second := NewExclusionCache(logger.NewNop(), keys, store)
	assert.Equal(t, first.Snapshot(ctx), second.Snapshot(ctx))
}

func TestResetForcesReload(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{}
	cache := NewExclusionCache(logger.NewNop(), codec.NewCodec(nil), store)

	require.NoError(t, cache.AddPermanentExclusion(ctx, lumpSum(-5, 3)))
	cache.Reset()

	assert.Equal(t, 0, cache.Stats(ctx).TotalPermanent)
	assert.Equal(t, 2, store.loads)
}
