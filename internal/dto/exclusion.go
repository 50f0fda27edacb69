package dto

// PromotionThreshold is the dropout count at which a strategy becomes
// permanently excluded.
const PromotionThreshold = 10

// PenaltyPerDropout is the cash deducted per recorded dropout.
const PenaltyPerDropout = 2.0

type KeySet map[StrategyKey]struct{}

func (s KeySet) Has(k StrategyKey) bool {
	_, ok := s[k]
	return ok
}

func (s KeySet) Add(k StrategyKey) {
	s[k] = struct{}{}
}

func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// ExclusionSnapshot is the persisted shape of the registry. ByMarket is keyed
// by MarketCondition.Code.
type ExclusionSnapshot struct {
	Permanent     KeySet
	ByMarket      map[int]KeySet
	DropoutCounts map[StrategyKey]int
}

func NewExclusionSnapshot() *ExclusionSnapshot {
	return &ExclusionSnapshot{
		Permanent:     KeySet{},
		ByMarket:      map[int]KeySet{},
		DropoutCounts: map[StrategyKey]int{},
	}
}

func (s *ExclusionSnapshot) Clone() *ExclusionSnapshot {
	out := &ExclusionSnapshot{
		Permanent:     s.Permanent.Clone(),
		ByMarket:      make(map[int]KeySet, len(s.ByMarket)),
		DropoutCounts: make(map[StrategyKey]int, len(s.DropoutCounts)),
	}
	for code, set := range s.ByMarket {
		out.ByMarket[code] = set.Clone()
	}
	for k, c := range s.DropoutCounts {
		out.DropoutCounts[k] = c
	}
	return out
}

// Size is the number of records the snapshot persists to.
func (s *ExclusionSnapshot) Size() int {
	n := len(s.Permanent) + len(s.DropoutCounts)
	for _, set := range s.ByMarket {
		n += len(set)
	}
	return n
}

// ExclusionRegistry is the in-memory registry. Methods on it never mutate, so a
// cloned registry can be shared by concurrent readers.
type ExclusionRegistry struct {
	Permanent     KeySet
	ByMarket      map[MarketCondition]KeySet
	DropoutCounts map[StrategyKey]int
}

func NewExclusionRegistry() *ExclusionRegistry {
	return &ExclusionRegistry{
		Permanent:     KeySet{},
		ByMarket:      map[MarketCondition]KeySet{},
		DropoutCounts: map[StrategyKey]int{},
	}
}

// IsExcluded checks the permanent set first, then the set of the given condition.
func (r *ExclusionRegistry) IsExcluded(key StrategyKey, condition MarketCondition) bool {
	if r.Permanent.Has(key) {
		return true
	}
	return r.ByMarket[condition].Has(key)
}

func (r *ExclusionRegistry) DropoutCount(key StrategyKey) int {
	return r.DropoutCounts[key]
}

func (r *ExclusionRegistry) Penalty(key StrategyKey) float64 {
	return float64(r.DropoutCounts[key]) * PenaltyPerDropout
}

func (r *ExclusionRegistry) MarketExcludedCount() int {
	total := 0
	for _, set := range r.ByMarket {
		total += len(set)
	}
	return total
}

func (r *ExclusionRegistry) Clone() *ExclusionRegistry {
	out := &ExclusionRegistry{
		Permanent:     r.Permanent.Clone(),
		ByMarket:      make(map[MarketCondition]KeySet, len(r.ByMarket)),
		DropoutCounts: make(map[StrategyKey]int, len(r.DropoutCounts)),
	}
	for m, set := range r.ByMarket {
		out.ByMarket[m] = set.Clone()
	}
	for k, c := range r.DropoutCounts {
		out.DropoutCounts[k] = c
	}
	return out
}

// ExclusionScope is the scope column of a persisted exclusion record.
type ExclusionScope int

const (
	ScopeDropoutOnly ExclusionScope = -1
	ScopePermanent   ExclusionScope = 0
)

// ExclusionRecord is one row of the compact snapshot representation. Field
// order on disk: buy rule, purchase mode, quantity, stop loss, sell rule,
// profit parameter, scope, dropout count, decline threshold.
type ExclusionRecord struct {
	BuyRule             string
	PurchaseMode        int
	PurchaseQuantity    float64
	StopLossThreshold   float64
	SellRule            int
	ProfitParameter     string
	Scope               ExclusionScope
	DropoutCount        int
	BuyDeclineThreshold float64
}

// RecordStructure names the positions of ExclusionRecord.Values.
var RecordStructure = []string{
	"buy_rule_type",
	"purchase_mode",
	"purchase_quantity",
	"stop_loss_threshold",
	"sell_rule_type",
	"profit_parameter",
	"scope",
	"dropout_count",
	"buy_decline_threshold",
}

func (r ExclusionRecord) Values() []interface{} {
	return []interface{}{
		r.BuyRule,
		r.PurchaseMode,
		r.PurchaseQuantity,
		r.StopLossThreshold,
		r.SellRule,
		r.ProfitParameter,
		int(r.Scope),
		r.DropoutCount,
		r.BuyDeclineThreshold,
	}
}

// DropoutEvent describes why a strategy dropped out of a run.
type DropoutEvent struct {
	Reason      ExitReason      `json:"reason"`
	Condition   MarketCondition `json:"condition"`
	FinalReturn float64         `json:"final_return"`
	Day         int             `json:"day"`
}

type ExclusionStats struct {
	PermanentHits    int64 `json:"permanent_hits"`
	MarketHits       int64 `json:"market_hits"`
	PenaltiesApplied int64 `json:"penalties_applied"`
	DropoutsRecorded int64 `json:"dropouts_recorded"`
	Promotions       int64 `json:"promotions"`
	TotalPermanent   int   `json:"total_permanent"`
	TotalMarket      int   `json:"total_market"`
	TotalDropouts    int   `json:"total_dropouts"`
}

// ExclusionInfo is the registry view of a single strategy.
type ExclusionInfo struct {
	Key              StrategyKey       `json:"key"`
	DropoutCount     int               `json:"dropout_count"`
	Penalty          float64           `json:"penalty"`
	Permanent        bool              `json:"permanent"`
	ExcludedInMarket []MarketCondition `json:"excluded_in_market,omitempty"`
}

// ExclusionRequest registers a strategy key as permanently excluded, or
// excluded for one market condition when Condition is set.
type ExclusionRequest struct {
	Key       StrategyKey     `json:"key" validate:"required"`
	Condition MarketCondition `json:"condition" validate:"omitempty,oneof=bull bear sideways volatile"`
}
