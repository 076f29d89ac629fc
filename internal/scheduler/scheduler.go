package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job — периодическая задача
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler запускает зарегистрированные задачи с заданным интервалом
type Scheduler struct {
	logger *zap.Logger
	jobs   []Job
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// AddJob добавляет задачу в планировщик
func (s *Scheduler) AddJob(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start выполняет задачи сразу и затем каждые interval, пока не отменён ctx.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("scheduler started",
		zap.Duration("interval", interval),
		zap.Int("jobs", len(s.jobs)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runJobs(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runJobs(ctx)
		}
	}
}

func (s *Scheduler) runJobs(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		}
	}
}
