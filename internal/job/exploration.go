package job

import (
	"context"
	"encoding/json"
	"fmt"

	"strategy-lab/internal/dto"
	"strategy-lab/pkg/logger"
)

// Explorer runs one exploration.
type Explorer interface {
	Run(ctx context.Context, req dto.ExplorationRequest) (*dto.ExplorationResult, error)
}

type explorationSummary struct {
	RunID           string              `json:"run_id"`
	Condition       dto.MarketCondition `json:"condition"`
	MarketReturnPct float64             `json:"market_return_pct"`
	Summary         dto.OutcomeSummary  `json:"summary"`
	Dropouts        int                 `json:"dropouts"`
	Promotions      int                 `json:"promotions"`
	Checkpointed    bool                `json:"checkpointed"`
}

type ExplorationStrategy struct {
	log      *logger.Logger
	explorer Explorer
}

func NewExplorationStrategy(log *logger.Logger, explorer Explorer) JobExecutionStrategy {
	return &ExplorationStrategy{
		log:      log,
		explorer: explorer,
	}
}

func (s *ExplorationStrategy) GetType() JobType {
	return JobTypeExploration
}

// Execute runs an exploration with the configured defaults.
func (s *ExplorationStrategy) Execute(ctx context.Context, job *Job) (JobResult, error) {
	result, err := s.explorer.Run(ctx, dto.ExplorationRequest{})
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, fmt.Errorf("exploration failed: %w", err)
	}

	output, err := json.Marshal(explorationSummary{
		RunID:           result.RunID,
		Condition:       result.Condition,
		MarketReturnPct: result.MarketReturnPct,
		Summary:         result.Summary,
		Dropouts:        result.Dropouts,
		Promotions:      result.Promotions,
		Checkpointed:    result.Checkpointed,
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to marshal exploration summary", logger.ErrorField(err))
	}

	exitCode := int32(JOB_EXIT_CODE_SUCCESS)
	switch {
	case result.Summary.Simulated == 0:
		exitCode = JOB_EXIT_CODE_SKIPPED
	case result.Summary.Failed > 0:
		exitCode = JOB_EXIT_CODE_PARTIAL_SUCCESS
	}

	s.log.InfoContext(ctx, "Exploration job finished",
		logger.StringField("job_name", job.Name),
		logger.StringField("run_id", result.RunID),
		logger.IntField("exit_code", int(exitCode)),
	)
	return JobResult{ExitCode: exitCode, Output: string(output)}, nil
}
