package pending

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// PoisonRepository stores records that exhausted their retry budget or can
// never be replayed. Rows here are kept for operator inspection and purged by
// the retention job.
type PoisonRepository struct {
	db *gorm.DB
}

func NewPoisonRepository(db *gorm.DB) *PoisonRepository {
	return &PoisonRepository{db: db}
}

// MoveTx copies the pending record into the poison table and deletes the
// original, inside the caller's transaction so the move is atomic.
func (r *PoisonRepository) MoveTx(tx *gorm.DB, row models.PendingEvent, reason enums.PoisonReason, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}

	poisoned := models.PoisonedEvent{
		PendingID:    row.ID,
		UserID:       row.UserID,
		Username:     row.Username,
		Email:        row.Email,
		Role:         row.Role,
		OccurredAt:   row.OccurredAt,
		Reason:       reason,
		AttemptCount: row.AttemptCount,
		FailedAt:     time.Now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		poisoned.LastError = &msg
	} else if row.LastError != nil {
		poisoned.LastError = row.LastError
	}

	if err := tx.Create(&poisoned).Error; err != nil {
		return err
	}
	return tx.Delete(&models.PendingEvent{}, "id = ?", row.ID).Error
}

// PurgeOlderThan removes poisoned rows past the retention window and reports
// how many were deleted.
func (r *PoisonRepository) PurgeOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("failed_at < ?", cutoff).Delete(&models.PoisonedEvent{})
	return res.RowsAffected, res.Error
}

// Count returns the poison backlog size.
func (r *PoisonRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.PoisonedEvent{}).Count(&n).Error
	return n, err
}
