package engine

import (
	"context"
	"sync/atomic"
	"time"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/helper"
	"strategy-lab/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type batchItem struct {
	spec dto.StrategySpec
	key  dto.StrategyKey
}

// SimulateBatch validates every spec up front, then simulates the valid ones
// on a bounded worker pool. Results keep the order of the valid input specs.
func (e *tradeEngine) SimulateBatch(ctx context.Context, strategies []dto.StrategySpec, series *dto.PriceSeries, penalties PenaltySource) *dto.BatchResult {
	items := make([]batchItem, 0, len(strategies))
	rejected := 0
	for _, spec := range strategies {
		key, err := e.codec.Encode(spec)
		if err != nil {
			rejected++
			e.log.DebugContext(ctx, "Skipping invalid strategy", logger.ErrorField(err))
			continue
		}
		items = append(items, batchItem{spec: spec, key: key})
	}

	var condition dto.MarketCondition
	if series != nil {
		condition = series.Condition
	}
	e.log.InfoContext(ctx, "Starting simulation batch",
		logger.IntField("strategies", len(items)),
		logger.IntField("rejected", rejected),
		logger.IntField("workers", e.opts.Workers),
		logger.StringField("condition", string(condition)),
	)

	start := time.Now()
	ind := sharedIndicators(series)
	results := make([]dto.ResultRecord, len(items))
	progress := rate.Sometimes{Every: e.opts.ProgressEvery}
	var done atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)
	for i, item := range items {
		g.Go(func() error {
			results[i] = e.run(item.spec, item.key, series, ind, penaltyOf(penalties, item.key))
			n := done.Add(1)
			progress.Do(func() {
				e.log.InfoContext(ctx, "Simulation progress",
					logger.IntField("done", int(n)),
					logger.IntField("total", len(items)),
				)
			})
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
			e.log.WarnContext(ctx, "Strategy simulation failed",
				logger.StringField("key", r.Key.String()),
				logger.StringField("error", r.Error),
			)
		}
	}

	e.log.InfoContext(ctx, "Simulation batch completed",
		logger.IntField("simulated", len(results)),
		logger.IntField("failed", failed),
		logger.Field("elapsed", time.Since(start).String()),
	)

	return &dto.BatchResult{
		Results:  results,
		Rejected: rejected,
		Failed:   failed,
	}
}

// sharedIndicators builds the indicators once for every worker. It returns
// nil when the series cannot be indexed, leaving each run to fault on its own
// inside its recovered scope.
func sharedIndicators(series *dto.PriceSeries) (ind *helper.Indicators) {
	if series == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			ind = nil
		}
	}()
	return helper.NewIndicators(series, indicatorPeriods...)
}
