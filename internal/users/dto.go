package users

import (
	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// CreateUserDTO carries the fields needed to insert a user.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
	Role         enums.Role
}

// ToModel converts the DTO into a persistable user. The ID is assigned here
// so the caller can reference it before the row round-trips.
func (dto CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Username:     dto.Username,
		Email:        dto.Email,
		PasswordHash: dto.PasswordHash,
		Role:         dto.Role,
		IsActive:     true,
	}
}
