package service

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/job"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/common"
	"strategy-lab/pkg/logger"
)

// executionRetention is how long finished job executions stay queryable.
const executionRetention = 24 * time.Hour

type TaskExecutor interface {
	Execute(ctx context.Context, j *job.Job, execution *dto.JobExecution) error
	GetExecution(id string) (*dto.JobExecution, bool)
}

type taskExecutor struct {
	log                *logger.Logger
	cache              cache.Cache
	executorStrategies map[job.JobType]job.JobExecutionStrategy
}

func NewTaskExecutor(log *logger.Logger, c cache.Cache, executorStrategies map[job.JobType]job.JobExecutionStrategy) TaskExecutor {
	return &taskExecutor{
		log:                log,
		cache:              c,
		executorStrategies: executorStrategies,
	}
}

func (t *taskExecutor) store(execution *dto.JobExecution) {
	snapshot := *execution
	t.cache.Set(fmt.Sprintf(common.KEY_JOB_EXECUTION, execution.ID), &snapshot, executionRetention)
}

func (t *taskExecutor) Execute(ctx context.Context, j *job.Job, execution *dto.JobExecution) error {
	t.log.InfoContext(ctx, "Processing job",
		logger.StringField("job_name", j.Name),
		logger.StringField("job_type", string(j.Type)),
		logger.StringField("execution_id", execution.ID),
	)
	execution.Status = dto.JobStatusRunning
	t.store(execution)

	var execErr error
	strategy := t.executorStrategies[j.Type]
	if strategy == nil {
		t.log.ErrorContext(ctx, "Job type not found", logger.StringField("job_type", string(j.Type)))
		execution.Status = dto.JobStatusFailed
		execution.ExitCode = job.JOB_EXIT_CODE_FAILED
		execution.Error = "job type not found"
		execErr = fmt.Errorf("job type %q not found", j.Type)
	} else {
		result, err := strategy.Execute(ctx, j)
		if err != nil {
			t.log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.StringField("job_name", j.Name))
			execution.Status = dto.JobStatusFailed
			execution.Error = err.Error()
			execErr = err
		} else {
			execution.Status = dto.JobStatusCompleted
		}
		execution.ExitCode = result.ExitCode
		execution.Output = result.Output
	}

	completedAt := time.Now()
	execution.CompletedAt = &completedAt
	t.store(execution)
	return execErr
}

func (t *taskExecutor) GetExecution(id string) (*dto.JobExecution, bool) {
	execution, ok := cache.GetFromCache[*dto.JobExecution](t.cache, fmt.Sprintf(common.KEY_JOB_EXECUTION, id))
	if !ok {
		return nil, false
	}
	snapshot := *execution
	return &snapshot, true
}
