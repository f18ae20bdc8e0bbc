package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// TokenTypeLoginChallenge marks the short-lived token issued between password and OTP.
const TokenTypeLoginChallenge = "login_challenge"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginChallengeClaims binds a pending login to the user that passed the password step.
type LoginChallengeClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Type   string    `json:"typ"`
	jwt.RegisteredClaims
}
