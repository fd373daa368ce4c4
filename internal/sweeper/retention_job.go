package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/teamup-app/teamup-backend/pkg/logger"
)

const defaultRetentionDays = 30

type poisonPurger interface {
	PurgeOlderThan(cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the poison-table cleanup job.
type RetentionJobParams struct {
	Logger    *logger.Logger
	Poison    poisonPurger
	Retention int
}

// NewRetentionJob builds the job that purges old poisoned events.
func NewRetentionJob(params RetentionJobParams) (*RetentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Poison == nil {
		return nil, fmt.Errorf("poison repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	return &RetentionJob{
		logg:      params.Logger,
		poison:    params.Poison,
		retention: retention,
		now:       time.Now,
	}, nil
}

// RetentionJob deletes poisoned events past the retention window.
type RetentionJob struct {
	logg      *logger.Logger
	poison    poisonPurger
	retention int
	now       func() time.Time
}

func (j *RetentionJob) Name() string { return "poisoned-events-retention" }

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.poison.PurgeOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("poison retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "poison retention cleanup complete")
	return nil
}
