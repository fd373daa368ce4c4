package models

import (
	"time"

	"github.com/google/uuid"
)

// VenueProfile is the venue-service projection of a created account.
type VenueProfile struct {
	VenueID   uuid.UUID `gorm:"column:venue_id;type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null;uniqueIndex"`
	Email     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
