package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// PendingEvent is a durable copy of a user-created event that failed
// immediate publication. A row exists exactly as long as the event has not
// been confirmed delivered to the channel: the publisher inserts on send
// failure, the sweeper deletes on successful resend.
type PendingEvent struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	Username     string     `gorm:"type:text;not null"`
	Email        string     `gorm:"type:text;not null"`
	Role         enums.Role `gorm:"type:text;not null"`
	OccurredAt   time.Time  `gorm:"column:occurred_at;not null"`
	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}
