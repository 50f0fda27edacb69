package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strategy-lab/config"
	"strategy-lab/internal/dto"
	"strategy-lab/internal/job"
	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrSchedulerBusy is returned when every concurrency slot is taken.
var ErrSchedulerBusy = errors.New("scheduler is at max concurrency")

var ErrUnknownJobType = errors.New("unknown job type")

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop() context.Context
	RunJob(ctx context.Context, jobType job.JobType) (*dto.JobExecution, error)
	GetExecution(id string) (*dto.JobExecution, bool)
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	cron         *cron.Cron
	taskExecutor TaskExecutor
	semaphore    chan struct{}
}

func NewSchedulerService(cfg *config.Config, log *logger.Logger, taskExecutor TaskExecutor) SchedulerService {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		cronParser:   parser,
		cron:         cron.New(cron.WithParser(parser)),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, cfg.Scheduler.MaxConcurrency),
	}
}

// Start registers every enabled configured job and starts the cron loop.
func (s *schedulerService) Start(ctx context.Context) error {
	registered := 0
	for _, sj := range s.cfg.Scheduler.Jobs {
		if !sj.Enabled {
			continue
		}
		j := &job.Job{Name: sj.Name, Type: job.JobType(sj.Type), Timeout: sj.Timeout}
		if !j.Type.IsValid() {
			return fmt.Errorf("unknown job type %q for job %s", sj.Type, sj.Name)
		}
		if _, err := s.cronParser.Parse(sj.Cron); err != nil {
			return fmt.Errorf("invalid cron expression %q for job %s: %w", sj.Cron, sj.Name, err)
		}

		_, err := s.cron.AddFunc(sj.Cron, func() {
			if _, err := s.executeJob(ctx, j); err != nil {
				s.log.ErrorContext(ctx, "Failed to execute scheduled job", logger.ErrorField(err), logger.StringField("job_name", j.Name))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", sj.Name, err)
		}
		registered++

		s.log.InfoContext(ctx, "Job scheduled",
			logger.StringField("job_name", sj.Name),
			logger.StringField("job_type", sj.Type),
			logger.StringField("cron", sj.Cron),
		)
	}

	s.cron.Start()
	s.log.InfoContext(ctx, "Scheduler started",
		logger.IntField("job_count", registered),
		logger.IntField("max_concurrency", s.cfg.Scheduler.MaxConcurrency),
	)
	return nil
}

// Stop halts the cron loop. The returned context is done once running cron
// callbacks have returned.
func (s *schedulerService) Stop() context.Context {
	return s.cron.Stop()
}

func (s *schedulerService) RunJob(ctx context.Context, jobType job.JobType) (*dto.JobExecution, error) {
	if !jobType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	j := &job.Job{Name: "manual-" + string(jobType), Type: jobType, Timeout: s.cfg.Scheduler.TimeoutDuration}
	for _, sj := range s.cfg.Scheduler.Jobs {
		if job.JobType(sj.Type) == jobType {
			j.Name = sj.Name
			if sj.Timeout > 0 {
				j.Timeout = sj.Timeout
			}
			break
		}
	}
	s.log.InfoContext(ctx, "Running job task", logger.StringField("job_name", j.Name), logger.StringField("job_type", string(jobType)))
	return s.executeJob(ctx, j)
}

func (s *schedulerService) GetExecution(id string) (*dto.JobExecution, bool) {
	return s.taskExecutor.GetExecution(id)
}

// executeJob claims a concurrency slot and runs the job in the background
// under its own timeout, detached from ctx cancellation.
func (s *schedulerService) executeJob(ctx context.Context, j *job.Job) (*dto.JobExecution, error) {
	select {
	case s.semaphore <- struct{}{}:
	default:
		return nil, ErrSchedulerBusy
	}

	execution := &dto.JobExecution{
		ID:        uuid.NewString(),
		Name:      j.Name,
		Type:      string(j.Type),
		Status:    dto.JobStatusRunning,
		StartedAt: time.Now(),
	}

	s.log.DebugContext(ctx, "Executing job",
		logger.StringField("job_name", j.Name),
		logger.StringField("job_type", string(j.Type)),
		logger.StringField("execution_id", execution.ID),
		logger.DurationField("timeout", s.timeoutOf(j)),
		logger.IntField("active_concurrency", len(s.semaphore)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	snapshot := *execution
	utils.GoSafe(s.log, func() {
		defer func() {
			<-s.semaphore
		}()

		newCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeoutOf(j))
		defer cancel()

		if err := s.taskExecutor.Execute(newCtx, j, execution); err != nil {
			s.log.ErrorContext(newCtx, "Failed to execute task", logger.ErrorField(err), logger.StringField("job_name", j.Name))
		}
	})
	return &snapshot, nil
}

func (s *schedulerService) timeoutOf(j *job.Job) time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	if s.cfg.Scheduler.TimeoutDuration > 0 {
		return s.cfg.Scheduler.TimeoutDuration
	}
	return 30 * time.Minute
}
