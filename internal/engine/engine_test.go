package engine_test

import (
	"context"
	"testing"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/engine"
	"strategy-lab/internal/market"
	"strategy-lab/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initialAsset = 10_000_000.0

// buildSeries turns daily closes into a series whose hourly bars all sit at
// the close, with a flat history at the first open.
func buildSeries(open float64, closes ...float64) *dto.PriceSeries {
	series := &dto.PriceSeries{
		Condition:    dto.MarketSideways,
		InitialPrice: open,
		History:      make([]float64, market.DefaultHistoryLength),
	}
	for i := range series.History {
		series.History[i] = open
	}

	prev := open
	for i, c := range closes {
		day := dto.DailyBar{DayIndex: i + 1, Open: prev, Close: c}
		series.Days = append(series.Days, day)
		for h := 0; h < dto.HoursPerDay; h++ {
			series.Hours = append(series.Hours, dto.HourlyBar{DayIndex: day.DayIndex, HourIndex: h, Price: c})
		}
		prev = c
	}
	return series
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newEngine(t *testing.T) engine.TradeEngine {
	t.Helper()
	return engine.NewTradeEngine(engine.Options{Workers: 4}, codec.NewCodec(nil), logger.NewNop())
}

func openEntry(quantity, stop float64, profit dto.ProfitParameters, sell dto.SellRuleType) dto.StrategySpec {
	return dto.StrategySpec{
		BuyRule:           dto.BuyRuleOpenEntry,
		PurchaseMode:      dto.PurchaseModePercent,
		PurchaseQuantity:  quantity,
		StopLossThreshold: stop,
		SellRule:          sell,
		Profit:            profit,
	}
}

// Sells pay fee, slippage, tax and levy: 0.00015+0.0002+0.0023+0.00046.
const sellRate = 0.00311

func TestCostModel(t *testing.T) {
	costs := engine.DefaultCostModel()
	assert.InDelta(t, 0.00035, costs.BuyRate(), 1e-12)
	assert.InDelta(t, sellRate, costs.SellRate(), 1e-12)

	for _, v := range []float64{1, 1000, 5_000_000} {
		assert.InDelta(t, v*0.00035, costs.BuyCost(v), 1e-9)
		assert.InDelta(t, v*sellRate, costs.SellCost(v), 1e-9)
	}
}

func TestSimulateStopLossOnDayTen(t *testing.T) {
	// The market recovers after the stop, the held shares are still marked
	// to the final close.
	series := buildSeries(100, append(append(repeat(100, 9), 94), repeat(120, 5)...)...)
	spec := openEntry(1, -5, dto.TargetProfit(50), dto.SellRuleLumpSum)

	result := newEngine(t).Simulate(context.Background(), spec, series, nil)

	assert.False(t, result.Failed)
	assert.Equal(t, dto.ExitStopLoss, result.ExitReason)
	assert.Equal(t, 10, result.ExitDay)
	assert.Equal(t, 1, result.TradeCount)

	shares := initialAsset * (1 - 0.00035) / 100
	assert.InDelta(t, shares*120, result.FinalAsset, 1e-6)
	assert.InDelta(t, (shares*120-initialAsset)/initialAsset*100, result.ReturnPct, 1e-9)
}

func TestSimulateTargetReached(t *testing.T) {
	series := buildSeries(100, 100, 110, 120)
	spec := openEntry(1, -5, dto.TargetProfit(50), dto.SellRuleLumpSum)

	result := newEngine(t).Simulate(context.Background(), spec, series, nil)

	assert.Equal(t, dto.ExitTargetReached, result.ExitReason)
	assert.Equal(t, 2, result.ExitDay)
	assert.GreaterOrEqual(t, result.ReturnPct, 5.0)
}

func TestSimulateLumpSumSellAllowsReentry(t *testing.T) {
	series := buildSeries(100, repeat(100, 5)...)
	// Day one dips to 98.5 then rallies to 102 before settling.
	hours := []float64{98.5, 102, 100, 100, 100, 100, 100, 100, 100}
	for h, p := range hours {
		series.Hours[h].Price = p
	}
	spec := dto.StrategySpec{
		BuyRule:             dto.BuyRuleOpenDecline,
		BuyDeclineThreshold: 1,
		PurchaseMode:        dto.PurchaseModePercent,
		PurchaseQuantity:    0.5,
		StopLossThreshold:   -5,
		SellRule:            dto.SellRuleLumpSum,
		Profit:              dto.TargetProfit(2),
	}

	result := newEngine(t).Simulate(context.Background(), spec, series, nil)

	require.Len(t, result.TradeLog, 2)
	assert.Equal(t, dto.TradeBuy, result.TradeLog[0].Side)
	assert.Equal(t, dto.TradeSell, result.TradeLog[1].Side)
	assert.Equal(t, 9, result.TradeLog[0].Hour)
	assert.Equal(t, 10, result.TradeLog[1].Hour)
	assert.Equal(t, dto.ExitEndOfSeries, result.ExitReason)
	assert.Equal(t, 5, result.ExitDay)
	assert.Greater(t, result.ReturnPct, 0.0)
}

func TestSimulateHoldDaysExpired(t *testing.T) {
	series := buildSeries(100, repeat(100, 10)...)
	spec := openEntry(1, -10, dto.HoldDaysProfit(3), dto.SellRuleHoldDays)

	result := newEngine(t).Simulate(context.Background(), spec, series, nil)

	assert.Equal(t, dto.ExitHoldDaysExpired, result.ExitReason)
	assert.Equal(t, 4, result.ExitDay)
	assert.Equal(t, 2, result.TradeCount)

	expected := initialAsset * (1 - 0.00035) * (1 - sellRate)
	assert.InDelta(t, expected, result.FinalAsset, 1e-6)
}

type fixedPenalty float64

func (p fixedPenalty) Penalty(dto.StrategyKey) float64 { return float64(p) }

func TestSimulateDebitsPenalty(t *testing.T) {
	series := buildSeries(100, repeat(100, 3)...)
	spec := openEntry(1, -10, dto.TargetProfit(50), dto.SellRuleLumpSum)
	e := newEngine(t)

	clean := e.Simulate(context.Background(), spec, series, nil)

	registry := dto.NewExclusionRegistry()
	key, err := codec.NewCodec(nil).Encode(spec)
	require.NoError(t, err)
	registry.DropoutCounts[key] = 3

	penalized := e.Simulate(context.Background(), spec, series, registry)

	assert.Equal(t, 0.0, clean.Penalty)
	assert.Equal(t, 6.0, penalized.Penalty)
	assert.Equal(t, initialAsset, penalized.InitialAsset)
	assert.InDelta(t, 6*(1-0.00035), clean.FinalAsset-penalized.FinalAsset, 1e-6)
}

func TestSimulateFaultYieldsSentinel(t *testing.T) {
	series := buildSeries(100, repeat(100, 5)...)
	series.Hours = series.Hours[:2*dto.HoursPerDay : 2*dto.HoursPerDay]
	spec := openEntry(0.5, -5, dto.TargetProfit(50), dto.SellRuleLumpSum)

	result := newEngine(t).Simulate(context.Background(), spec, series, fixedPenalty(0))

	assert.True(t, result.Failed)
	assert.Equal(t, dto.ExitSimulationError, result.ExitReason)
	assert.Equal(t, -100.0, result.ReturnPct)
	assert.Equal(t, 0.0, result.FinalAsset)
	assert.Equal(t, 1, result.ExitDay)
	assert.NotEmpty(t, result.Error)
}

func TestSimulateNilSeriesYieldsSentinel(t *testing.T) {
	e := newEngine(t)
	specs := []dto.StrategySpec{
		openEntry(0.5, -5, dto.TargetProfit(50), dto.SellRuleLumpSum),
		openEntry(1, -3, dto.ElasticProfit(2, 0.5), dto.SellRuleElasticAggressive),
	}

	tests := []struct {
		name    string
		results func() []dto.ResultRecord
	}{
		{
			name: "simulate",
			results: func() []dto.ResultRecord {
				return []dto.ResultRecord{e.Simulate(context.Background(), specs[0], nil, nil)}
			},
		},
		{
			name: "simulate batch",
			results: func() []dto.ResultRecord {
				batch := e.SimulateBatch(context.Background(), specs, nil, nil)
				assert.Equal(t, len(specs), batch.Failed)
				return batch.Results
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := tt.results()
			require.NotEmpty(t, results)
			for _, r := range results {
				assert.True(t, r.Failed)
				assert.Equal(t, dto.ExitSimulationError, r.ExitReason)
				assert.Equal(t, -100.0, r.ReturnPct)
				assert.Equal(t, 1, r.ExitDay)
				assert.NotEmpty(t, r.Key)
			}
		})
	}
}

func TestSimulateSeededSidewaysIsDeterministic(t *testing.T) {
	spec := openEntry(0.5, -7, dto.TargetProfit(4.5), dto.SellRuleLumpSum)

	runOnce := func() dto.ResultRecord {
		synth := market.NewSynthesizer(market.Options{Seed: 20240611})
		series, err := synth.GenerateWithCondition(dto.MarketSideways, market.DefaultDays)
		require.NoError(t, err)
		return newEngine(t).Simulate(context.Background(), spec, series, nil)
	}

	first := runOnce()
	second := runOnce()

	assert.Equal(t, first, second)
	assert.False(t, first.Failed)

	// Day one buys half the cash on each of its nine bars. The close-based
	// stop fires on day 19 and the residual shares ride down to the final
	// close of 72.19663870352468.
	assert.Equal(t, dto.ExitStopLoss, first.ExitReason)
	assert.Equal(t, 19, first.ExitDay)
	assert.Equal(t, dto.HoursPerDay, first.TradeCount)
	assert.InDelta(t, 7_242_975.215425922, first.FinalAsset, 1e-4)
	assert.InDelta(t, -27.570247845740788, first.ReturnPct, 1e-9)
}

func TestSimulateBatch(t *testing.T) {
	synth := market.NewSynthesizer(market.Options{Seed: 99})
	series := synth.Generate(60)

	valid := []dto.StrategySpec{
		openEntry(0.5, -7, dto.TargetProfit(4.5), dto.SellRuleLumpSum),
		openEntry(1, -3, dto.ElasticProfit(2, 0.5), dto.SellRuleElasticAggressive),
		{
			BuyRule:             dto.BuyRuleMA20Decline,
			BuyDeclineThreshold: 2,
			PurchaseMode:        dto.PurchaseModeFixedShares,
			PurchaseQuantity:    1000,
			StopLossThreshold:   -10,
			SellRule:            dto.SellRuleHoldDays,
			Profit:              dto.HoldDaysProfit(10),
		},
	}
	invalid := openEntry(0.5, 3, dto.TargetProfit(4.5), dto.SellRuleLumpSum)
	input := []dto.StrategySpec{valid[0], invalid, valid[1], valid[2]}

	batch := newEngine(t).SimulateBatch(context.Background(), input, series, nil)

	assert.Equal(t, 1, batch.Rejected)
	assert.Equal(t, 0, batch.Failed)
	require.Len(t, batch.Results, len(valid))

	c := codec.NewCodec(nil)
	for i, r := range batch.Results {
		key, err := c.Encode(valid[i])
		require.NoError(t, err)
		assert.Equal(t, key, r.Key)
		assert.NotEmpty(t, r.ExitReason)
		assert.LessOrEqual(t, len(r.TradeLog), engine.DefaultTradeLogLimit)
		assert.GreaterOrEqual(t, r.ExitDay, 1)
		assert.LessOrEqual(t, r.ExitDay, series.Len())
	}
}
