package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/metrics"
)

const defaultJobTimeout = 2 * time.Minute

// Job is a named task run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on their cron schedules. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		cancel:  cancel,
		timeout: defaultJobTimeout,
		logger:  logger,
	}
}

// Add registers job.
func (s *Scheduler) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("jobs: %s has no run function", job.Name)
	}
	_, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("jobs: schedule %s: %w", job.Name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	metrics.RecordJobRun(job.Name, err)
	if err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
