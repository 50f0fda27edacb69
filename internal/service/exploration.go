package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"strategy-lab/config"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/engine"
	"strategy-lab/internal/market"
	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/utils"

	"github.com/google/uuid"
)

type ExplorationService interface {
	Run(ctx context.Context, req dto.ExplorationRequest) (*dto.ExplorationResult, error)
}

type explorationService struct {
	cfg        config.Exploration
	marketDays int
	log        *logger.Logger
	catalog    StrategyCatalog
	engine     engine.TradeEngine
	exclusions ExclusionCache

	synthMu sync.Mutex
	synth   market.Synthesizer
}

func NewExplorationService(
	cfg *config.Config,
	log *logger.Logger,
	synth market.Synthesizer,
	catalog StrategyCatalog,
	tradeEngine engine.TradeEngine,
	exclusions ExclusionCache,
) ExplorationService {
	return &explorationService{
		cfg:        cfg.Exploration,
		marketDays: cfg.Market.Days,
		log:        log,
		synth:      synth,
		catalog:    catalog,
		engine:     tradeEngine,
		exclusions: exclusions,
	}
}

type explorationPlan struct {
	mode        dto.ExplorationMode
	sampleSize  int
	condition   dto.MarketCondition
	days        int
	checkpoint  bool
	resultLimit int
	dropouts    map[dto.ExitReason]bool
}

func (s *explorationService) plan(req dto.ExplorationRequest) (explorationPlan, error) {
	p := explorationPlan{
		mode:        req.Mode,
		sampleSize:  req.SampleSize,
		condition:   req.Condition,
		days:        req.Days,
		checkpoint:  s.cfg.AutoCheckpoint,
		resultLimit: req.ResultLimit,
		dropouts:    map[dto.ExitReason]bool{},
	}
	if p.mode == "" {
		p.mode = dto.ExplorationMode(s.cfg.Mode)
	}
	if p.mode != dto.ExplorationSample && p.mode != dto.ExplorationExhaustive {
		return p, &dto.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown exploration mode %q", p.mode)}
	}
	if p.sampleSize <= 0 {
		p.sampleSize = s.cfg.SampleSize
	}
	if p.condition == "" && s.cfg.Condition != "" {
		p.condition = dto.MarketCondition(s.cfg.Condition)
	}
	if p.condition != "" && !p.condition.IsValid() {
		return p, &dto.ValidationError{Field: "condition", Reason: fmt.Sprintf("unknown market condition %q", p.condition)}
	}
	if p.days <= 0 {
		p.days = s.marketDays
	}
	if req.Checkpoint != nil {
		p.checkpoint = *req.Checkpoint
	}
	if p.resultLimit <= 0 {
		p.resultLimit = s.cfg.ResultLimit
	}
	for _, r := range s.cfg.DropoutReasons {
		p.dropouts[dto.ExitReason(r)] = true
	}
	return p, nil
}

func (s *explorationService) series(p explorationPlan) (*dto.PriceSeries, error) {
	s.synthMu.Lock()
	defer s.synthMu.Unlock()
	if p.condition == "" {
		return s.synth.Generate(p.days), nil
	}
	return s.synth.GenerateWithCondition(p.condition, p.days)
}

// Run synthesizes one market, simulates the catalog against it and feeds the
// configured dropout reasons back into the exclusion registry.
func (s *explorationService) Run(ctx context.Context, req dto.ExplorationRequest) (*dto.ExplorationResult, error) {
	p, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = s.log.WithFields(ctx, logger.StringField("run_id", runID))
	start := time.Now()

	series, err := s.series(p)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize market: %w", err)
	}
	s.log.InfoContext(ctx, "Exploration started",
		logger.StringField("mode", string(p.mode)),
		logger.StringField("condition", string(series.Condition)),
		logger.Float64Field("market_return_pct", series.MarketReturnPct),
		logger.IntField("days", series.Len()),
	)

	registry := s.exclusions.Snapshot(ctx)

	var catalog *dto.CatalogResult
	if p.mode == dto.ExplorationExhaustive {
		catalog, err = s.catalog.GenerateAll(ctx, series.Condition)
	} else {
		catalog, err = s.catalog.Sample(ctx, p.sampleSize, series.Condition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy catalog: %w", err)
	}

	if !utils.ShouldContinue(ctx, s.log) {
		return nil, ctx.Err()
	}

	batch := s.engine.SimulateBatch(ctx, catalog.Strategies, series, registry)

	dropouts, promotions, err := s.recordDropouts(ctx, batch.Results, series.Condition, registry, p.dropouts)
	if err != nil {
		return nil, err
	}

	result := &dto.ExplorationResult{
		RunID:           runID,
		Mode:            p.mode,
		Condition:       series.Condition,
		MarketReturnPct: series.MarketReturnPct,
		Days:            series.Len(),
		Catalog:         *catalog,
		Rejected:        batch.Rejected,
		Summary:         summarize(batch.Results),
		Dropouts:        dropouts,
		Promotions:      promotions,
		Results:         topResults(batch.Results, p.resultLimit),
		StartedAt:       start,
	}
	result.Catalog.Strategies = nil

	if p.checkpoint {
		if err := s.exclusions.Save(ctx); err != nil {
			s.log.ErrorContext(ctx, "Exploration checkpoint failed", logger.ErrorField(err))
		} else {
			result.Checkpointed = true
		}
	}

	result.Duration = time.Since(start)
	s.log.InfoContext(ctx, "Exploration completed",
		logger.IntField("simulated", result.Summary.Simulated),
		logger.IntField("successful", result.Summary.Successful),
		logger.StringField("average_return", utils.FormatPercentage(result.Summary.AverageReturn)),
		logger.StringField("best_return", utils.FormatPercentage(result.Summary.BestReturn)),
		logger.IntField("dropouts", dropouts),
		logger.IntField("promotions", promotions),
		logger.DurationField("elapsed", result.Duration),
	)
	return result, nil
}

// recordDropouts runs on a single goroutine after the batch so registry
// updates never race with the workers.
func (s *explorationService) recordDropouts(
	ctx context.Context,
	results []dto.ResultRecord,
	condition dto.MarketCondition,
	before *dto.ExclusionRegistry,
	reasons map[dto.ExitReason]bool,
) (int, int, error) {
	dropouts, promotions := 0, 0
	for _, r := range results {
		if !reasons[r.ExitReason] {
			continue
		}
		count, err := s.exclusions.RecordDropout(ctx, r.Strategy, dto.DropoutEvent{
			Reason:      r.ExitReason,
			Condition:   condition,
			FinalReturn: r.ReturnPct,
			Day:         r.ExitDay,
		})
		if err != nil {
			return dropouts, promotions, fmt.Errorf("failed to record dropout for %s: %w", r.Key, err)
		}
		dropouts++
		if count >= dto.PromotionThreshold && !before.Permanent.Has(r.Key) {
			promotions++
		}
	}
	return dropouts, promotions, nil
}

func summarize(results []dto.ResultRecord) dto.OutcomeSummary {
	summary := dto.OutcomeSummary{
		Simulated:    len(results),
		ByExitReason: map[dto.ExitReason]int{},
	}
	total := 0.0
	for i, r := range results {
		summary.ByExitReason[r.ExitReason]++
		if r.Failed {
			summary.Failed++
		}
		if r.ReturnPct > 0 {
			summary.Successful++
		}
		total += r.ReturnPct
		if i == 0 || r.ReturnPct > summary.BestReturn {
			summary.BestReturn = r.ReturnPct
		}
	}
	if len(results) > 0 {
		summary.AverageReturn = total / float64(len(results))
	}
	return summary
}

// topResults orders by return, best first, and keeps at most limit entries.
// A non-positive limit keeps everything.
func topResults(results []dto.ResultRecord, limit int) []dto.ResultRecord {
	out := make([]dto.ResultRecord, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReturnPct > out[j].ReturnPct })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
