package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// Claims carried inside access tokens.
type Claims struct {
	UserID   string     `json:"uid"`
	Username string     `json:"username"`
	Role     enums.Role `json:"role"`
	jwt.RegisteredClaims
}
