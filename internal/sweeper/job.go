package sweeper

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
	"github.com/teamup-app/teamup-backend/pkg/metrics"
	"github.com/teamup-app/teamup-backend/pkg/pending"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingRepo interface {
	ClaimDue(tx *gorm.DB, limit int) ([]models.PendingEvent, error)
	DeleteTx(tx *gorm.DB, id int64) error
	MarkFailedTx(tx *gorm.DB, id int64, cause error) error
}

type poisonRepo interface {
	MoveTx(tx *gorm.DB, row models.PendingEvent, reason enums.PoisonReason, cause error) error
}

type eventSender interface {
	SendNow(ctx context.Context, event events.UserCreatedEvent) error
}

// JobParams configure the pending-events sweep job.
type JobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Pending     pendingRepo
	Poison      poisonRepo
	Sender      eventSender
	Metrics     *metrics.PipelineMetrics
	BatchSize   int
	MaxAttempts int
}

// NewJob builds the sweep job that replays stored events.
func NewJob(params JobParams) (*Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending repository required")
	}
	if params.Poison == nil {
		return nil, fmt.Errorf("poison repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("event sender required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Job{
		logg:        params.Logger,
		db:          params.DB,
		pending:     params.Pending,
		poison:      params.Poison,
		sender:      params.Sender,
		metrics:     params.Metrics,
		batchSize:   batch,
		maxAttempts: maxAttempts,
	}, nil
}

// Job resends events from the durable retry store. One cycle claims a batch
// inside a transaction, so concurrent sweeps never double-send the same
// record, and each record fails independently of the rest of the batch.
type Job struct {
	logg        *logger.Logger
	db          txRunner
	pending     pendingRepo
	poison      poisonRepo
	sender      eventSender
	metrics     *metrics.PipelineMetrics
	batchSize   int
	maxAttempts int
}

func (j *Job) Name() string { return "pending-events-sweep" }

func (j *Job) Run(ctx context.Context) error {
	var (
		resent   int
		failed   int
		poisoned int
	)

	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.pending.ClaimDue(tx, j.batchSize)
		if err != nil {
			return fmt.Errorf("claim pending events: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		var recordErrs error
		for _, row := range rows {
			outcome, err := j.processRecord(ctx, tx, row)
			switch outcome {
			case outcomeResent:
				resent++
			case outcomeFailed:
				failed++
			case outcomePoisoned:
				poisoned++
			}
			if err != nil {
				recordErrs = multierr.Append(recordErrs, err)
			}
		}
		// Bookkeeping failures abort the transaction; send failures do not.
		return recordErrs
	})
	if err != nil {
		return err
	}

	if resent+failed+poisoned > 0 {
		statsCtx := j.logg.WithFields(ctx, map[string]any{
			"resent":   resent,
			"failed":   failed,
			"poisoned": poisoned,
		})
		j.logg.Info(statsCtx, "sweep cycle processed stored events")
	}
	return nil
}

type recordOutcome int

const (
	outcomeResent recordOutcome = iota
	outcomeFailed
	outcomePoisoned
)

// processRecord handles one stored event. The returned error reports
// bookkeeping failures only; a failed resend is tracked on the row itself.
func (j *Job) processRecord(ctx context.Context, tx *gorm.DB, row models.PendingEvent) (recordOutcome, error) {
	recordCtx := j.logg.WithFields(ctx, map[string]any{
		"pending_id":    row.ID,
		"user_id":       row.UserID.String(),
		"role":          row.Role,
		"attempt_count": row.AttemptCount,
	})

	event := pending.Event(row)
	if err := event.Validate(); err != nil {
		// A row that fails validation can never be sent; park it
		// immediately instead of burning attempts.
		j.logg.Warn(j.logg.WithField(recordCtx, "error", err.Error()), "stored event is not replayable")
		if moveErr := j.poison.MoveTx(tx, row, enums.PoisonReasonNonReplayable, err); moveErr != nil {
			return outcomePoisoned, fmt.Errorf("poison record %d: %w", row.ID, moveErr)
		}
		j.incPoisoned(enums.PoisonReasonNonReplayable)
		return outcomePoisoned, nil
	}

	if err := j.sender.SendNow(ctx, event); err != nil {
		nextAttempt := row.AttemptCount + 1
		if nextAttempt >= j.maxAttempts {
			j.logg.Warn(j.logg.WithField(recordCtx, "error", err.Error()), "retry budget exhausted, moving event to poison table")
			if moveErr := j.poison.MoveTx(tx, row, enums.PoisonReasonMaxAttempts, err); moveErr != nil {
				return outcomePoisoned, fmt.Errorf("poison record %d: %w", row.ID, moveErr)
			}
			j.incPoisoned(enums.PoisonReasonMaxAttempts)
			return outcomePoisoned, nil
		}

		j.logg.Warn(j.logg.WithField(recordCtx, "error", err.Error()), "resend failed, keeping event for next sweep")
		if markErr := j.pending.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return outcomeFailed, fmt.Errorf("mark record %d failed: %w", row.ID, markErr)
		}
		return outcomeFailed, nil
	}

	if err := j.pending.DeleteTx(tx, row.ID); err != nil {
		// The event went out but the row survived; the next sweep will
		// send a duplicate, which consumers absorb idempotently.
		return outcomeResent, fmt.Errorf("delete resent record %d: %w", row.ID, err)
	}
	if j.metrics != nil {
		j.metrics.IncResent(string(row.Role))
	}
	j.logg.Info(recordCtx, "stored event resent")
	return outcomeResent, nil
}

func (j *Job) incPoisoned(reason enums.PoisonReason) {
	if j.metrics == nil {
		return
	}
	j.metrics.IncPoisoned(string(reason))
}
