package players

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
)

// Repo persists player profiles.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Exists reports whether a profile already exists for the user.
func (r *Repo) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var profile models.PlayerProfile
	err := r.db.WithContext(ctx).
		Select("user_id").
		First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts the profile. A concurrent duplicate insert is a no-op, so
// redeliveries of the same event cannot fail here.
func (r *Repo) Create(ctx context.Context, profile models.PlayerProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&profile).Error
}

// Get fetches a profile by user id.
func (r *Repo) Get(ctx context.Context, userID uuid.UUID) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
