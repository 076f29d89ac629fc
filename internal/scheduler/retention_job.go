package scheduler

import (
	"context"
	"time"
)

// Purger удаляет устаревшие преобразования.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob удаляет преобразования старше retention.
type RetentionJob struct {
	purger    Purger
	retention time.Duration
	now       func() time.Time
}

func NewRetentionJob(p Purger, retention time.Duration) *RetentionJob {
	return &RetentionJob{purger: p, retention: retention, now: time.Now}
}

func (j *RetentionJob) Name() string { return "retention" }

func (j *RetentionJob) Run(ctx context.Context) error {
	_, err := j.purger.PurgeExpired(ctx, j.now().Add(-j.retention))
	return err
}
