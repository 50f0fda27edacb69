package service

import (
	"strategy-lab/config"
	"strategy-lab/internal/codec"
	"strategy-lab/internal/engine"
	"strategy-lab/internal/job"
	"strategy-lab/internal/market"
	"strategy-lab/internal/repository"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/logger"
)

type Service struct {
	Codec              codec.StrategyKeyCodec
	ExclusionCache     ExclusionCache
	Catalog            StrategyCatalog
	TradeEngine        engine.TradeEngine
	ExplorationService ExplorationService
	TaskExecutor       TaskExecutor
	SchedulerService   SchedulerService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	keys codec.StrategyKeyCodec,
) *Service {
	exclusionCache := NewExclusionCache(log.Named("exclusions"), keys, repo.ExclusionRepo)
	catalog := NewStrategyCatalog(log.Named("catalog"), keys, exclusionCache, cfg.Catalog.Seed, cfg.Catalog.AttemptFactor)

	tradeEngine := engine.NewTradeEngine(engine.Options{
		InitialAsset:    cfg.Simulation.InitialAsset,
		TargetReturnPct: cfg.Simulation.TargetReturnPct,
		TradeLogLimit:   cfg.Simulation.TradeLogLimit,
		Workers:         cfg.Simulation.Workers,
		ProgressEvery:   cfg.Simulation.ProgressEvery,
		Costs: engine.CostModel{
			Fee:      cfg.Simulation.Costs.Fee,
			Slippage: cfg.Simulation.Costs.Slippage,
			Tax:      cfg.Simulation.Costs.Tax,
			Levy:     cfg.Simulation.Costs.Levy,
		},
	}, keys, log.Named("engine"))

	synth := market.NewSynthesizer(market.Options{
		Seed:          cfg.Market.Seed,
		InitialPrice:  cfg.Market.InitialPrice,
		HistoryLength: cfg.Market.HistoryLength,
		MinPrice:      cfg.Market.MinPrice,
		MaxPrice:      cfg.Market.MaxPrice,
	})

	explorationService := NewExplorationService(cfg, log.Named("exploration"), synth, catalog, tradeEngine, exclusionCache)

	executorStrategies := make(map[job.JobType]job.JobExecutionStrategy)
	executorStrategies[job.JobTypeExploration] = job.NewExplorationStrategy(log, explorationService)
	executorStrategies[job.JobTypeCheckpoint] = job.NewCheckpointStrategy(log, exclusionCache)

	taskExecutor := NewTaskExecutor(log, inmemoryCache, executorStrategies)
	schedulerService := NewSchedulerService(cfg, log, taskExecutor)

	return &Service{
		Codec:              keys,
		ExclusionCache:     exclusionCache,
		Catalog:            catalog,
		TradeEngine:        tradeEngine,
		ExplorationService: explorationService,
		TaskExecutor:       taskExecutor,
		SchedulerService:   schedulerService,
	}
}
