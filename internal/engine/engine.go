package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/helper"
	"strategy-lab/pkg/logger"
)

const (
	DefaultInitialAsset    = 10_000_000.0
	DefaultTradeLogLimit   = 10
	DefaultTargetReturnPct = 5.0
	DefaultProgressEvery   = 1000

	failedReturnPct = -100.0
)

var errNilSeries = errors.New("nil price series")

// PenaltySource supplies the upfront cash penalty of a strategy. It is read
// concurrently by batch workers and must not change while a batch runs.
type PenaltySource interface {
	Penalty(key dto.StrategyKey) float64
}

type TradeEngine interface {
	Simulate(ctx context.Context, spec dto.StrategySpec, series *dto.PriceSeries, penalties PenaltySource) dto.ResultRecord
	SimulateBatch(ctx context.Context, strategies []dto.StrategySpec, series *dto.PriceSeries, penalties PenaltySource) *dto.BatchResult
}

type Options struct {
	InitialAsset    float64
	TargetReturnPct float64
	TradeLogLimit   int
	Workers         int
	ProgressEvery   int
	Costs           CostModel
}

func (o Options) withDefaults() Options {
	if o.InitialAsset <= 0 {
		o.InitialAsset = DefaultInitialAsset
	}
	if o.TargetReturnPct <= 0 {
		o.TargetReturnPct = DefaultTargetReturnPct
	}
	if o.TradeLogLimit <= 0 {
		o.TradeLogLimit = DefaultTradeLogLimit
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.Costs == (CostModel{}) {
		o.Costs = DefaultCostModel()
	}
	return o
}

type tradeEngine struct {
	opts  Options
	codec codec.StrategyKeyCodec
	log   *logger.Logger
}

func NewTradeEngine(opts Options, keyCodec codec.StrategyKeyCodec, log *logger.Logger) TradeEngine {
	return &tradeEngine{
		opts:  opts.withDefaults(),
		codec: keyCodec,
		log:   log,
	}
}

// Simulate runs one strategy. An invalid spec, a malformed series or a fault
// inside the run yields the failed sentinel result instead of an error.
func (e *tradeEngine) Simulate(ctx context.Context, spec dto.StrategySpec, series *dto.PriceSeries, penalties PenaltySource) dto.ResultRecord {
	key, err := e.codec.Encode(spec)
	if err != nil {
		e.log.WarnContext(ctx, "Rejected strategy before simulation", logger.ErrorField(err))
		return e.failedResult(spec, key, 0, err)
	}

	return e.run(spec, key, series, nil, penaltyOf(penalties, key))
}

func penaltyOf(penalties PenaltySource, key dto.StrategyKey) float64 {
	if penalties == nil {
		return 0
	}
	return penalties.Penalty(key)
}

// run simulates one strategy. A nil ind is built from series inside the
// recovered scope.
func (e *tradeEngine) run(spec dto.StrategySpec, key dto.StrategyKey, series *dto.PriceSeries, ind *helper.Indicators, penalty float64) (result dto.ResultRecord) {
	defer func() {
		if r := recover(); r != nil {
			result = e.failedResult(spec, key, penalty, &dto.SimulationFault{Key: key, Cause: r})
		}
	}()

	if series == nil {
		return e.failedResult(spec, key, penalty, &dto.SimulationFault{Key: key, Cause: errNilSeries})
	}
	if ind == nil {
		ind = helper.NewIndicators(series, indicatorPeriods...)
	}

	initial := e.opts.InitialAsset
	st := newSimulationState(initial-penalty, e.opts.TradeLogLimit)

	prevClose := series.InitialPrice
	for _, day := range series.Days {
		for _, bar := range series.HoursOf(day.DayIndex) {
			if st.phase == phaseExited {
				break
			}
			view := marketView{day: day, bar: bar, prevClose: prevClose, ind: ind}

			if st.cash > 0 && shouldBuy(spec, view) {
				amount := buyAmount(spec, st.cash, bar.Price)
				if amount > 0 && amount <= st.cash {
					st.buy(day, bar, amount, e.opts.Costs)
				}
			}

			if shouldSell(spec, st, view) {
				st.sell(day, bar, e.opts.Costs)
				if spec.SellRule == dto.SellRuleHoldDays {
					st.exit(day.DayIndex, dto.ExitHoldDaysExpired)
				}
			}
		}
		if st.phase == phaseExited {
			break
		}

		ret := (st.equity(day.Close) - initial) / initial * 100
		if ret <= spec.StopLossThreshold {
			st.exit(day.DayIndex, dto.ExitStopLoss)
			break
		}
		if ret >= e.opts.TargetReturnPct {
			st.exit(day.DayIndex, dto.ExitTargetReached)
			break
		}
		prevClose = day.Close
	}

	if st.phase != phaseExited {
		st.exit(series.Len(), dto.ExitEndOfSeries)
	}

	// Shares still held are marked to the last close of the series, even
	// after an early exit.
	final := st.equity(series.FinalClose())

	return dto.ResultRecord{
		Strategy:     spec,
		Key:          key,
		InitialAsset: initial,
		FinalAsset:   final,
		ReturnPct:    (final - initial) / initial * 100,
		Penalty:      penalty,
		TradeCount:   st.tradeCount,
		ExitDay:      st.exitDay,
		ExitReason:   st.exitReason,
		TradeLog:     st.tradeLog,
	}
}

func buyAmount(spec dto.StrategySpec, cash, price float64) float64 {
	switch spec.PurchaseMode {
	case dto.PurchaseModePercent:
		return cash * spec.PurchaseQuantity
	case dto.PurchaseModeFixedShares:
		return spec.PurchaseQuantity * price
	}
	return 0
}

func (e *tradeEngine) failedResult(spec dto.StrategySpec, key dto.StrategyKey, penalty float64, cause error) dto.ResultRecord {
	return dto.ResultRecord{
		Strategy:     spec,
		Key:          key,
		InitialAsset: e.opts.InitialAsset,
		FinalAsset:   0,
		ReturnPct:    failedReturnPct,
		Penalty:      penalty,
		ExitDay:      1,
		ExitReason:   dto.ExitSimulationError,
		TradeLog:     []dto.TradeLogEntry{},
		Failed:       true,
		Error:        fmt.Sprint(cause),
	}
}
