package venues

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
)

// Repo persists venue profiles.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Exists reports whether a profile already exists for the venue.
func (r *Repo) Exists(ctx context.Context, venueID uuid.UUID) (bool, error) {
	var profile models.VenueProfile
	err := r.db.WithContext(ctx).
		Select("venue_id").
		First(&profile, "venue_id = ?", venueID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts the profile, treating duplicate inserts as a no-op.
func (r *Repo) Create(ctx context.Context, profile models.VenueProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&profile).Error
}

// Get fetches a profile by venue id.
func (r *Repo) Get(ctx context.Context, venueID uuid.UUID) (*models.VenueProfile, error) {
	var profile models.VenueProfile
	if err := r.db.WithContext(ctx).First(&profile, "venue_id = ?", venueID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
