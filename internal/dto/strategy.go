package dto

// BuyRuleType is the short code of a buy rule as it appears in a strategy key.
type BuyRuleType string

const (
	BuyRuleOpenEntry         BuyRuleType = "SM"
	BuyRuleOpenDecline       BuyRuleType = "SH"
	BuyRulePriorCloseDecline BuyRuleType = "JH"
	BuyRuleMA20Decline       BuyRuleType = "20H"
	BuyRuleMA60Decline       BuyRuleType = "60H"
	BuyRuleMA120Decline      BuyRuleType = "120H"
	BuyRuleMomentum          BuyRuleType = "MM"
	BuyRuleSurgeWait         BuyRuleType = "GD"
	BuyRuleElasticEntry      BuyRuleType = "GMM"
)

// BuyRules lists every buy rule in catalog order.
func BuyRules() []BuyRuleType {
	return []BuyRuleType{
		BuyRuleOpenEntry,
		BuyRuleOpenDecline,
		BuyRulePriorCloseDecline,
		BuyRuleMA20Decline,
		BuyRuleMA60Decline,
		BuyRuleMA120Decline,
		BuyRuleMomentum,
		BuyRuleSurgeWait,
		BuyRuleElasticEntry,
	}
}

// IsValid reports whether the code is one of the known buy rules.
func (b BuyRuleType) IsValid() bool {
	for _, r := range BuyRules() {
		if r == b {
			return true
		}
	}
	return false
}

// IsUnconditional reports whether the rule fires without a decline threshold.
func (b BuyRuleType) IsUnconditional() bool {
	return b == BuyRuleOpenEntry || b == BuyRuleMomentum
}

// MovingAveragePeriod returns the period of a moving-average decline rule, 0 otherwise.
func (b BuyRuleType) MovingAveragePeriod() int {
	switch b {
	case BuyRuleMA20Decline:
		return 20
	case BuyRuleMA60Decline:
		return 60
	case BuyRuleMA120Decline:
		return 120
	}
	return 0
}

func (b BuyRuleType) Label() string {
	switch b {
	case BuyRuleOpenEntry:
		return "open entry"
	case BuyRuleOpenDecline:
		return "open decline"
	case BuyRulePriorCloseDecline:
		return "prior close decline"
	case BuyRuleMA20Decline:
		return "MA20 decline"
	case BuyRuleMA60Decline:
		return "MA60 decline"
	case BuyRuleMA120Decline:
		return "MA120 decline"
	case BuyRuleMomentum:
		return "momentum"
	case BuyRuleSurgeWait:
		return "surge wait"
	case BuyRuleElasticEntry:
		return "elastic entry"
	}
	return "unknown"
}

// PurchaseMode decides how a buy is sized.
type PurchaseMode int

const (
	PurchaseModePercent     PurchaseMode = 1
	PurchaseModeFixedShares PurchaseMode = 2
)

func (p PurchaseMode) IsValid() bool {
	return p == PurchaseModePercent || p == PurchaseModeFixedShares
}

// SellRuleType is the numeric sell rule code used in strategy keys.
type SellRuleType int

const (
	SellRuleLumpSum           SellRuleType = 1
	SellRuleElasticAggressive SellRuleType = 2
	SellRuleElasticPatient    SellRuleType = 3
	SellRuleElasticRadical    SellRuleType = 4
	SellRuleHoldDays          SellRuleType = 5
)

func (s SellRuleType) IsValid() bool {
	return s >= SellRuleLumpSum && s <= SellRuleHoldDays
}

func (s SellRuleType) IsElastic() bool {
	return s == SellRuleElasticAggressive || s == SellRuleElasticPatient || s == SellRuleElasticRadical
}

// ProfitKind is the profit parameter shape a sell rule expects.
func (s SellRuleType) ProfitKind() ProfitKind {
	switch {
	case s == SellRuleLumpSum:
		return ProfitKindTarget
	case s.IsElastic():
		return ProfitKindElastic
	case s == SellRuleHoldDays:
		return ProfitKindHoldDays
	}
	return ProfitKindUnknown
}

func (s SellRuleType) Label() string {
	switch s {
	case SellRuleLumpSum:
		return "lump-sum"
	case SellRuleElasticAggressive:
		return "elastic aggressive"
	case SellRuleElasticPatient:
		return "elastic patient"
	case SellRuleElasticRadical:
		return "elastic radical"
	case SellRuleHoldDays:
		return "hold days"
	}
	return "unknown"
}

type ProfitKind int

const (
	ProfitKindUnknown ProfitKind = iota
	ProfitKindTarget
	ProfitKindElastic
	ProfitKindHoldDays
)

// ProfitParameters carries the sell-rule specific profit settings. Only the
// fields of Kind are meaningful.
type ProfitParameters struct {
	Kind      ProfitKind `json:"kind"`
	Target    float64    `json:"target,omitempty"`
	Start     float64    `json:"start,omitempty"`
	Increment float64    `json:"increment,omitempty"`
	HoldDays  int        `json:"hold_days,omitempty"`
}

func TargetProfit(target float64) ProfitParameters {
	return ProfitParameters{Kind: ProfitKindTarget, Target: target}
}

func ElasticProfit(start, increment float64) ProfitParameters {
	return ProfitParameters{Kind: ProfitKindElastic, Start: start, Increment: increment}
}

func HoldDaysProfit(days int) ProfitParameters {
	return ProfitParameters{Kind: ProfitKindHoldDays, HoldDays: days}
}

// StrategySpec is one point of the strategy parameter space.
type StrategySpec struct {
	BuyRule             BuyRuleType      `json:"buy_rule" validate:"required"`
	BuyDeclineThreshold float64          `json:"buy_decline_threshold" validate:"gte=0"`
	PurchaseMode        PurchaseMode     `json:"purchase_mode" validate:"required,oneof=1 2"`
	PurchaseQuantity    float64          `json:"purchase_quantity" validate:"gt=0"`
	StopLossThreshold   float64          `json:"stop_loss_threshold" validate:"lt=0"`
	SellRule            SellRuleType     `json:"sell_rule" validate:"required,oneof=1 2 3 4 5"`
	Profit              ProfitParameters `json:"profit"`
}

// StrategyKey is the canonical identity of a StrategySpec.
type StrategyKey string

func (k StrategyKey) String() string {
	return string(k)
}
