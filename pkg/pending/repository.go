package pending

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/events"
)

// Repository persists events that could not be published on the hot path.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert durably stores a failed event. Accepts either the shared handle or a
// transaction handle.
func (r *Repository) Insert(tx *gorm.DB, event events.UserCreatedEvent, lastError error) error {
	if tx == nil {
		tx = r.db
	}
	if tx == nil {
		return errors.New("db handle required")
	}
	row := models.PendingEvent{
		UserID:     event.UserID,
		Username:   event.Username,
		Email:      event.Email,
		Role:       event.Role,
		OccurredAt: event.OccurredAt,
	}
	if lastError != nil {
		msg := lastError.Error()
		row.LastError = &msg
	}
	return tx.Create(&row).Error
}

// ClaimDue locks up to limit rows for this sweep cycle. On Postgres the rows
// are claimed with FOR UPDATE SKIP LOCKED so overlapping sweeps never pick the
// same record; rows stay locked until the surrounding transaction ends.
func (r *Repository) ClaimDue(tx *gorm.DB, limit int) ([]models.PendingEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}

	query := tx.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit)

	if tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{
			Strength: clause.LockingStrengthUpdate,
			Options:  clause.LockingOptionsSkipLocked,
		})
	}

	var rows []models.PendingEvent
	err := query.Find(&rows).Error
	return rows, err
}

// DeleteTx removes a successfully resent record.
func (r *Repository) DeleteTx(tx *gorm.DB, id int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Delete(&models.PendingEvent{}, "id = ?", id).Error
}

// MarkFailedTx bumps the attempt counter and records the failure reason.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id int64, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&models.PendingEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    msg,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// Count returns the number of pending records, used by health reporting.
func (r *Repository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.PendingEvent{}).Count(&n).Error
	return n, err
}

// Event rebuilds the wire payload from a stored row.
func Event(row models.PendingEvent) events.UserCreatedEvent {
	occurredAt := row.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = row.CreatedAt
	}
	return events.UserCreatedEvent{
		UserID:     row.UserID,
		Username:   row.Username,
		Email:      row.Email,
		Role:       row.Role,
		OccurredAt: occurredAt,
	}
}
