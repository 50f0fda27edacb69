package job

import (
	"context"
	"fmt"

	"strategy-lab/internal/dto"
	"strategy-lab/pkg/logger"
)

// Checkpointer persists the exclusion registry.
type Checkpointer interface {
	Save(ctx context.Context) error
	Stats(ctx context.Context) dto.ExclusionStats
}

type CheckpointStrategy struct {
	log          *logger.Logger
	checkpointer Checkpointer
}

func NewCheckpointStrategy(log *logger.Logger, checkpointer Checkpointer) JobExecutionStrategy {
	return &CheckpointStrategy{
		log:          log,
		checkpointer: checkpointer,
	}
}

func (s *CheckpointStrategy) GetType() JobType {
	return JobTypeCheckpoint
}

func (s *CheckpointStrategy) Execute(ctx context.Context, job *Job) (JobResult, error) {
	if err := s.checkpointer.Save(ctx); err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, fmt.Errorf("checkpoint failed: %w", err)
	}

	stats := s.checkpointer.Stats(ctx)
	output := fmt.Sprintf("saved %d permanent, %d market, %d dropout counters",
		stats.TotalPermanent, stats.TotalMarket, stats.TotalDropouts)
	s.log.InfoContext(ctx, "Checkpoint job finished",
		logger.StringField("job_name", job.Name),
		logger.StringField("output", output),
		logger.Int64Field("promotions", stats.Promotions),
	)
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: output}, nil
}
