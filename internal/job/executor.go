package job

import (
	"context"
	"time"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

type JobType string

const (
	JobTypeExploration JobType = "exploration"
	JobTypeCheckpoint  JobType = "checkpoint"
)

func JobTypes() []JobType {
	return []JobType{
		JobTypeExploration,
		JobTypeCheckpoint,
	}
}

func (t JobType) IsValid() bool {
	for _, known := range JobTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Job is a scheduled or manually triggered unit of work.
type Job struct {
	Name    string
	Type    JobType
	Timeout time.Duration
}

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, job *Job) (JobResult, error)
	GetType() JobType
}
