package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerProfile is the player-service projection of a created account,
// keyed by the originating account's UUID. The primary key doubles as the
// idempotency guard for redelivered events.
type PlayerProfile struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Username  string    `gorm:"type:text;not null;uniqueIndex"`
	Email     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
