package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// RegisterRequest contains the payload for creating an account.
type RegisterRequest struct {
	Username string     `json:"username" validate:"required,min=3,max=64"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Role     enums.Role `json:"role" validate:"required"`
}

// RegisterResponse echoes the created account.
type RegisterResponse struct {
	UserID    uuid.UUID  `json:"userId"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      enums.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// LoginRequest contains the credentials payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UserID    uuid.UUID  `json:"userId"`
	Username  string     `json:"username"`
	Role      enums.Role `json:"role"`
}
