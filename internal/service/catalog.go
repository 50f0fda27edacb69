package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/pkg/logger"
)

// DefaultAttemptFactor bounds Sample at factor × count draws.
const DefaultAttemptFactor = 10

// Excluder reports whether a strategy must be skipped for a condition.
type Excluder interface {
	ShouldExclude(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition) (bool, error)
}

type StrategyCatalog interface {
	Info() dto.CatalogInfo
	GenerateAll(ctx context.Context, condition dto.MarketCondition) (*dto.CatalogResult, error)
	Sample(ctx context.Context, count int, condition dto.MarketCondition) (*dto.CatalogResult, error)
}

type buyEntry struct {
	rule      dto.BuyRuleType
	threshold float64
}

type quantityEntry struct {
	mode     dto.PurchaseMode
	quantity float64
}

type sellEntry struct {
	rule   dto.SellRuleType
	profit dto.ProfitParameters
}

type catalogAxes struct {
	buys       []buyEntry
	quantities []quantityEntry
	stopLosses []float64
	sells      []sellEntry
}

func defaultAxes() catalogAxes {
	var axes catalogAxes

	declines := map[dto.BuyRuleType][]float64{
		dto.BuyRuleOpenEntry:         {0},
		dto.BuyRuleOpenDecline:       {1, 1.5, 2, 2.5, 3, 4, 5},
		dto.BuyRulePriorCloseDecline: {1, 1.5, 2, 2.5, 3, 4, 5, 6},
		dto.BuyRuleMA20Decline:       {1, 2, 3, 4, 5, 6},
		dto.BuyRuleMA60Decline:       {1, 2, 3, 4, 5, 6},
		dto.BuyRuleMA120Decline:      {1, 2, 3, 4, 5, 6},
		dto.BuyRuleMomentum:          {0},
		dto.BuyRuleSurgeWait:         {3, 4, 5, 6, 7},
		dto.BuyRuleElasticEntry:      {2, 3, 4, 5, 6},
	}
	for _, rule := range dto.BuyRules() {
		for _, th := range declines[rule] {
			axes.buys = append(axes.buys, buyEntry{rule: rule, threshold: th})
		}
	}

	for _, q := range []float64{0.10, 0.20, 0.25, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80, 0.90, 1.00} {
		axes.quantities = append(axes.quantities, quantityEntry{mode: dto.PurchaseModePercent, quantity: q})
	}
	for _, q := range []float64{100, 200, 300, 500, 1000, 2000, 3000, 5000} {
		axes.quantities = append(axes.quantities, quantityEntry{mode: dto.PurchaseModeFixedShares, quantity: q})
	}

	axes.stopLosses = []float64{-1, -1.5, -2, -3, -4, -5, -6, -7, -8, -9, -10, -12, -15}

	for _, target := range []float64{1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5, 6, 7, 8, 9, 10, 12, 15} {
		axes.sells = append(axes.sells, sellEntry{rule: dto.SellRuleLumpSum, profit: dto.TargetProfit(target)})
	}
	elastic := []struct {
		rule   dto.SellRuleType
		starts []float64
		incs   []float64
	}{
		{dto.SellRuleElasticAggressive, []float64{1.5, 2, 2.5, 3}, []float64{0.5, 1, 1.5, 2}},
		{dto.SellRuleElasticPatient, []float64{3, 4, 5, 6}, []float64{2, 2.5, 3}},
		{dto.SellRuleElasticRadical, []float64{1, 1.5, 2}, []float64{0.3, 0.5, 0.8, 1}},
	}
	for _, e := range elastic {
		for _, start := range e.starts {
			for _, inc := range e.incs {
				axes.sells = append(axes.sells, sellEntry{rule: e.rule, profit: dto.ElasticProfit(start, inc)})
			}
		}
	}
	for _, days := range []int{10, 15, 20, 25, 30} {
		axes.sells = append(axes.sells, sellEntry{rule: dto.SellRuleHoldDays, profit: dto.HoldDaysProfit(days)})
	}
	return axes
}

func (a catalogAxes) spec(b buyEntry, q quantityEntry, stop float64, s sellEntry) dto.StrategySpec {
	return dto.StrategySpec{
		BuyRule:             b.rule,
		BuyDeclineThreshold: b.threshold,
		PurchaseMode:        q.mode,
		PurchaseQuantity:    q.quantity,
		StopLossThreshold:   stop,
		SellRule:            s.rule,
		Profit:              s.profit,
	}
}

type strategyCatalog struct {
	log           *logger.Logger
	keys          codec.StrategyKeyCodec
	excluder      Excluder
	axes          catalogAxes
	attemptFactor int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStrategyCatalog builds the catalog over the fixed parameter axes. A zero
// seed draws one from the clock; excluder may be nil.
func NewStrategyCatalog(log *logger.Logger, keys codec.StrategyKeyCodec, excluder Excluder, seed uint64, attemptFactor int) StrategyCatalog {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if attemptFactor <= 0 {
		attemptFactor = DefaultAttemptFactor
	}
	return &strategyCatalog{
		log:           log,
		keys:          keys,
		excluder:      excluder,
		axes:          defaultAxes(),
		attemptFactor: attemptFactor,
		rng:           rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (c *strategyCatalog) Info() dto.CatalogInfo {
	return dto.CatalogInfo{
		BuyRules:         len(c.axes.buys),
		Quantities:       len(c.axes.quantities),
		StopLosses:       len(c.axes.stopLosses),
		SellRules:        len(c.axes.sells),
		TheoreticalTotal: len(c.axes.buys) * len(c.axes.quantities) * len(c.axes.stopLosses) * len(c.axes.sells),
	}
}

// admit validates spec and checks it against the excluder and the keys seen
// so far, updating the result counters.
func (c *strategyCatalog) admit(ctx context.Context, spec dto.StrategySpec, condition dto.MarketCondition, seen dto.KeySet, result *dto.CatalogResult) (bool, error) {
	key, err := c.keys.Encode(spec)
	if err != nil {
		result.Invalid++
		return false, nil
	}
	if seen.Has(key) {
		result.Duplicates++
		return false, nil
	}
	seen.Add(key)

	if c.excluder != nil {
		excluded, err := c.excluder.ShouldExclude(ctx, spec, condition)
		if err != nil {
			return false, err
		}
		if excluded {
			result.Excluded++
			return false, nil
		}
	}
	result.Strategies = append(result.Strategies, spec)
	return true, nil
}

func (c *strategyCatalog) GenerateAll(ctx context.Context, condition dto.MarketCondition) (*dto.CatalogResult, error) {
	info := c.Info()
	result := &dto.CatalogResult{Strategies: make([]dto.StrategySpec, 0, info.TheoreticalTotal)}
	seen := make(dto.KeySet, info.TheoreticalTotal)

	for _, b := range c.axes.buys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, q := range c.axes.quantities {
			for _, stop := range c.axes.stopLosses {
				for _, s := range c.axes.sells {
					result.Attempts++
					if _, err := c.admit(ctx, c.axes.spec(b, q, stop, s), condition, seen, result); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	result.Total = len(result.Strategies)

	c.log.InfoContext(ctx, "Generated full strategy catalog",
		logger.IntField("total", result.Total),
		logger.IntField("excluded", result.Excluded),
		logger.IntField("invalid", result.Invalid),
		logger.StringField("condition", string(condition)),
	)
	return result, nil
}

// Sample draws each axis uniformly until count strategies are admitted or
// the attempt budget runs out. A short result is not an error.
func (c *strategyCatalog) Sample(ctx context.Context, count int, condition dto.MarketCondition) (*dto.CatalogResult, error) {
	result := &dto.CatalogResult{Strategies: make([]dto.StrategySpec, 0, max(count, 0))}
	if count <= 0 {
		return result, nil
	}
	seen := make(dto.KeySet, count)
	maxAttempts := c.attemptFactor * count

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(result.Strategies) < count && result.Attempts < maxAttempts {
		if result.Attempts%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		result.Attempts++

		spec := c.axes.spec(
			c.axes.buys[c.rng.IntN(len(c.axes.buys))],
			c.axes.quantities[c.rng.IntN(len(c.axes.quantities))],
			c.axes.stopLosses[c.rng.IntN(len(c.axes.stopLosses))],
			c.axes.sells[c.rng.IntN(len(c.axes.sells))],
		)
		if _, err := c.admit(ctx, spec, condition, seen, result); err != nil {
			return nil, err
		}
	}
	result.Total = len(result.Strategies)

	if result.Total < count {
		c.log.WarnContext(ctx, "Strategy sample smaller than requested",
			logger.IntField("requested", count),
			logger.IntField("generated", result.Total),
			logger.IntField("attempts", result.Attempts),
			logger.IntField("excluded", result.Excluded),
			logger.IntField("duplicates", result.Duplicates),
		)
	}
	return result, nil
}
