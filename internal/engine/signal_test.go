package engine

import (
	"testing"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/helper"

	"github.com/stretchr/testify/assert"
)

func TestElasticTarget(t *testing.T) {
	p := dto.ElasticProfit(3, 2)

	tests := []struct {
		holdingDays int
		expected    float64
	}{
		{0, 3},
		{2, 3},
		{3, 5},
		{8, 7},
		{30, 23},
		{90, 23},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, elasticTarget(p, tt.holdingDays), tt.holdingDays)
	}
}

func TestShouldBuy(t *testing.T) {
	history := make([]float64, 120)
	for i := range history {
		history[i] = 100
	}
	series := &dto.PriceSeries{
		History: history,
		Days: []dto.DailyBar{
			{DayIndex: 1, Open: 100, Close: 104},
			{DayIndex: 2, Open: 104, Close: 101},
		},
	}
	ind := helper.NewIndicators(series, indicatorPeriods...)

	view := func(day int, open, price float64) marketView {
		return marketView{
			day:       dto.DailyBar{DayIndex: day, Open: open},
			bar:       dto.HourlyBar{DayIndex: day, Price: price},
			prevClose: 104,
			ind:       ind,
		}
	}
	rule := func(b dto.BuyRuleType, threshold float64) dto.StrategySpec {
		return dto.StrategySpec{BuyRule: b, BuyDeclineThreshold: threshold}
	}

	tests := []struct {
		name     string
		spec     dto.StrategySpec
		view     marketView
		expected bool
	}{
		{"open entry day one", rule(dto.BuyRuleOpenEntry, 0), view(1, 100, 100), true},
		{"open entry later day", rule(dto.BuyRuleOpenEntry, 0), view(2, 104, 100), false},
		{"open decline hit", rule(dto.BuyRuleOpenDecline, 2), view(1, 100, 97.5), true},
		{"open decline miss", rule(dto.BuyRuleOpenDecline, 2), view(1, 100, 99), false},
		{"prior close never on day one", rule(dto.BuyRulePriorCloseDecline, 1), view(1, 100, 50), false},
		{"prior close decline", rule(dto.BuyRulePriorCloseDecline, 2), view(2, 104, 101), true},
		{"ma20 decline", rule(dto.BuyRuleMA20Decline, 3), view(1, 100, 96), true},
		{"ma120 decline miss", rule(dto.BuyRuleMA120Decline, 3), view(1, 100, 98), false},
		{"momentum above premium", rule(dto.BuyRuleMomentum, 0), view(1, 100, 103), true},
		{"momentum below premium", rule(dto.BuyRuleMomentum, 0), view(1, 100, 101.5), false},
		{"surge wait", rule(dto.BuyRuleSurgeWait, 3), view(1, 100, 103.5), true},
		{"surge wait miss", rule(dto.BuyRuleSurgeWait, 3), view(1, 100, 102), false},
		{"elastic entry below recent high", rule(dto.BuyRuleElasticEntry, 2), view(2, 104, 101.5), true},
		{"elastic entry near recent high", rule(dto.BuyRuleElasticEntry, 2), view(2, 104, 103), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldBuy(tt.spec, tt.view))
		})
	}
}

func TestTradeLogKeepsMostRecent(t *testing.T) {
	st := newSimulationState(1000, 3)
	for day := 1; day <= 5; day++ {
		st.record(dto.TradeLogEntry{Day: day})
	}

	assert.Equal(t, 5, st.tradeCount)
	assert.Len(t, st.tradeLog, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{st.tradeLog[0].Day, st.tradeLog[1].Day, st.tradeLog[2].Day})
}

func TestBuyBlendsAverageCost(t *testing.T) {
	costs := CostModel{}
	st := newSimulationState(1000, 10)
	day := dto.DailyBar{DayIndex: 1}

	st.buy(day, dto.HourlyBar{Price: 10}, 100, costs)
	st.buy(day, dto.HourlyBar{Price: 20}, 200, costs)

	assert.Equal(t, phaseHolding, st.phase)
	assert.Equal(t, 1, st.firstBuyDay)
	assert.InDelta(t, 20.0, st.shares, 1e-9)
	assert.InDelta(t, 15.0, st.avgCost, 1e-9)
	assert.InDelta(t, 700.0, st.cash, 1e-9)
}
