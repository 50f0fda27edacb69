package engine

import (
	"strategy-lab/internal/dto"
	"strategy-lab/internal/helper"
)

const (
	momentumPeriod  = 20
	momentumPremium = 1.02
	recentHighSpan  = 5

	elasticTierDays = 3
	elasticMaxTier  = 10
)

// indicatorPeriods lists every moving average a buy rule may ask for.
var indicatorPeriods = []int{20, 60, 120}

// marketView is what the signal rules may look at for one hourly bar.
type marketView struct {
	day       dto.DailyBar
	bar       dto.HourlyBar
	prevClose float64
	ind       *helper.Indicators
}

func declinePct(reference, price float64) float64 {
	if reference <= 0 {
		return 0
	}
	return (reference - price) / reference * 100
}

func shouldBuy(spec dto.StrategySpec, v marketView) bool {
	price := v.bar.Price

	switch spec.BuyRule {
	case dto.BuyRuleOpenEntry:
		return v.day.DayIndex == 1
	case dto.BuyRuleOpenDecline:
		return declinePct(v.day.Open, price) >= spec.BuyDeclineThreshold
	case dto.BuyRulePriorCloseDecline:
		if v.day.DayIndex <= 1 {
			return false
		}
		return declinePct(v.prevClose, price) >= spec.BuyDeclineThreshold
	case dto.BuyRuleMA20Decline, dto.BuyRuleMA60Decline, dto.BuyRuleMA120Decline:
		ma, ok := v.ind.MovingAverage(spec.BuyRule.MovingAveragePeriod(), v.day.DayIndex)
		if !ok {
			return false
		}
		return declinePct(ma, price) >= spec.BuyDeclineThreshold
	case dto.BuyRuleMomentum:
		ma, ok := v.ind.MovingAverage(momentumPeriod, v.day.DayIndex)
		if !ok {
			return false
		}
		return price > ma*momentumPremium
	case dto.BuyRuleSurgeWait:
		return -declinePct(v.day.Open, price) >= spec.BuyDeclineThreshold
	case dto.BuyRuleElasticEntry:
		high, ok := v.ind.RecentHigh(v.day.DayIndex, recentHighSpan)
		if !ok {
			return false
		}
		return declinePct(high, price) >= spec.BuyDeclineThreshold
	}
	return false
}

// elasticTarget raises the start target by increment every three holding
// days, up to ten tiers.
func elasticTarget(p dto.ProfitParameters, holdingDays int) float64 {
	tier := holdingDays / elasticTierDays
	if tier > elasticMaxTier {
		tier = elasticMaxTier
	}
	if tier < 0 {
		tier = 0
	}
	return p.Start + p.Increment*float64(tier)
}

func shouldSell(spec dto.StrategySpec, st *simulationState, v marketView) bool {
	if st.phase != phaseHolding || st.shares <= 0 {
		return false
	}
	holdingDays := v.day.DayIndex - st.firstBuyDay

	switch spec.Profit.Kind {
	case dto.ProfitKindTarget:
		return st.unrealizedReturn(v.bar.Price) >= spec.Profit.Target
	case dto.ProfitKindElastic:
		return st.unrealizedReturn(v.bar.Price) >= elasticTarget(spec.Profit, holdingDays)
	case dto.ProfitKindHoldDays:
		return holdingDays >= spec.Profit.HoldDays
	}
	return false
}
