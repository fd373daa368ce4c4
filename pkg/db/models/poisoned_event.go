package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// PoisonedEvent captures a pending event that exhausted its retry budget.
// Rows are for operator inspection and manual replay, never retried
// automatically.
type PoisonedEvent struct {
	ID           int64              `gorm:"column:id;primaryKey;autoIncrement"`
	PendingID    int64              `gorm:"column:pending_id;not null"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Username     string             `gorm:"type:text;not null"`
	Email        string             `gorm:"type:text;not null"`
	Role         enums.Role         `gorm:"type:text;not null"`
	OccurredAt   time.Time          `gorm:"column:occurred_at;not null"`
	Reason       enums.PoisonReason `gorm:"type:text;not null"`
	LastError    *string            `gorm:"column:last_error"`
	AttemptCount int                `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time          `gorm:"column:failed_at;autoCreateTime"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
