package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakePendingRepo struct {
	rows     []models.PendingEvent
	claimErr error

	deleted []int64
	marked  []int64
	markErr error
}

func (f *fakePendingRepo) ClaimDue(_ *gorm.DB, limit int) ([]models.PendingEvent, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakePendingRepo) DeleteTx(_ *gorm.DB, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePendingRepo) MarkFailedTx(_ *gorm.DB, id int64, _ error) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

type fakePoisonRepo struct {
	moved   []models.PendingEvent
	reasons []enums.PoisonReason
	err     error
}

func (f *fakePoisonRepo) MoveTx(_ *gorm.DB, row models.PendingEvent, reason enums.PoisonReason, _ error) error {
	if f.err != nil {
		return f.err
	}
	f.moved = append(f.moved, row)
	f.reasons = append(f.reasons, reason)
	return nil
}

type fakeSender struct {
	sent    []events.UserCreatedEvent
	failFor map[uuid.UUID]error
}

func (f *fakeSender) SendNow(_ context.Context, event events.UserCreatedEvent) error {
	if err, ok := f.failFor[event.UserID]; ok {
		return err
	}
	f.sent = append(f.sent, event)
	return nil
}

func pendingRow(id int64, attempts int) models.PendingEvent {
	return models.PendingEvent{
		ID:           id,
		UserID:       uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		Role:         enums.RolePlayer,
		OccurredAt:   time.Now().UTC(),
		AttemptCount: attempts,
		CreatedAt:    time.Now().UTC(),
	}
}

func newTestJob(t *testing.T, pending *fakePendingRepo, poison *fakePoisonRepo, sender *fakeSender) *Job {
	t.Helper()
	job, err := NewJob(JobParams{
		Logger:      logger.New(logger.Options{ServiceName: "sweeper-test"}),
		DB:          fakeTxRunner{},
		Pending:     pending,
		Poison:      poison,
		Sender:      sender,
		BatchSize:   10,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	return job
}

func TestRunResendsAndDeletesStoredEvents(t *testing.T) {
	pending := &fakePendingRepo{rows: []models.PendingEvent{pendingRow(1, 0), pendingRow(2, 1)}}
	poison := &fakePoisonRepo{}
	sender := &fakeSender{}
	job := newTestJob(t, pending, poison, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 resends, got %d", len(sender.sent))
	}
	if len(pending.deleted) != 2 {
		t.Fatalf("resent rows must be deleted, deleted %d", len(pending.deleted))
	}
	if len(poison.moved) != 0 {
		t.Fatalf("nothing should be poisoned, moved %d", len(poison.moved))
	}
}

func TestRunIsolatesPerRecordFailures(t *testing.T) {
	first := pendingRow(1, 0)
	second := pendingRow(2, 0)
	third := pendingRow(3, 0)
	pending := &fakePendingRepo{rows: []models.PendingEvent{first, second, third}}
	sender := &fakeSender{failFor: map[uuid.UUID]error{second.UserID: errors.New("broker unavailable")}}
	job := newTestJob(t, pending, &fakePoisonRepo{}, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("surviving records must still be sent, sent %d", len(sender.sent))
	}
	if len(pending.deleted) != 2 {
		t.Fatalf("expected 2 deletions, got %d", len(pending.deleted))
	}
	if len(pending.marked) != 1 || pending.marked[0] != second.ID {
		t.Fatalf("failed record must be marked, marked %v", pending.marked)
	}
}

func TestRunEscalatesAfterMaxAttempts(t *testing.T) {
	// Attempt count 2 with max 3 means this failure is the last allowed.
	row := pendingRow(7, 2)
	pending := &fakePendingRepo{rows: []models.PendingEvent{row}}
	poison := &fakePoisonRepo{}
	sender := &fakeSender{failFor: map[uuid.UUID]error{row.UserID: errors.New("broker unavailable")}}
	job := newTestJob(t, pending, poison, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(poison.moved) != 1 || poison.moved[0].ID != row.ID {
		t.Fatalf("record must be poisoned, moved %v", poison.moved)
	}
	if poison.reasons[0] != enums.PoisonReasonMaxAttempts {
		t.Fatalf("unexpected poison reason: %s", poison.reasons[0])
	}
	if len(pending.marked) != 0 {
		t.Fatalf("poisoned record must not also be marked failed, marked %v", pending.marked)
	}
}

func TestRunPoisonsNonReplayableRecords(t *testing.T) {
	row := pendingRow(9, 0)
	row.Username = ""
	pending := &fakePendingRepo{rows: []models.PendingEvent{row}}
	poison := &fakePoisonRepo{}
	sender := &fakeSender{}
	job := newTestJob(t, pending, poison, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("invalid record must never be sent, sent %d", len(sender.sent))
	}
	if len(poison.reasons) != 1 || poison.reasons[0] != enums.PoisonReasonNonReplayable {
		t.Fatalf("unexpected poison outcome: %v", poison.reasons)
	}
}

func TestRunEmptyStoreIsNoop(t *testing.T) {
	pending := &fakePendingRepo{}
	sender := &fakeSender{}
	job := newTestJob(t, pending, &fakePoisonRepo{}, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sender.sent) != 0 || len(pending.deleted) != 0 {
		t.Fatal("empty store must produce no sends")
	}
}

func TestRunPropagatesClaimError(t *testing.T) {
	pending := &fakePendingRepo{claimErr: errors.New("db down")}
	job := newTestJob(t, pending, &fakePoisonRepo{}, &fakeSender{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected claim error to propagate")
	}
}

func TestRunPropagatesBookkeepingErrors(t *testing.T) {
	row := pendingRow(4, 0)
	pending := &fakePendingRepo{
		rows:    []models.PendingEvent{row},
		markErr: errors.New("update failed"),
	}
	sender := &fakeSender{failFor: map[uuid.UUID]error{row.UserID: errors.New("broker unavailable")}}
	job := newTestJob(t, pending, &fakePoisonRepo{}, sender)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected bookkeeping error to propagate")
	}
}

func TestRetentionJobPurgesOldRows(t *testing.T) {
	purger := &fakePurger{deleted: 3}
	job, err := NewRetentionJob(RetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "sweeper-test"}),
		Poison:    purger,
		Retention: 30,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if purger.cutoff.IsZero() {
		t.Fatal("cutoff must be passed to the repository")
	}
	wantBefore := time.Now().UTC().Add(-29 * 24 * time.Hour)
	if !purger.cutoff.Before(wantBefore) {
		t.Fatalf("cutoff %v should be at least 30 days back", purger.cutoff)
	}
}

type fakePurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePurger) PurgeOlderThan(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestRetentionJobPropagatesErrors(t *testing.T) {
	job, err := NewRetentionJob(RetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "sweeper-test"}),
		Poison: &fakePurger{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected purge error to propagate")
	}
}
