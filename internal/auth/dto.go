package auth

import (
	"time"

	"github.com/sokohub/sokohub-backend/internal/users"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// RegisterRequest is the sign-up payload. Role cannot be changed afterwards.
type RegisterRequest struct {
	Username  string         `json:"username" validate:"required,min=3,max=150"`
	Email     string         `json:"email" validate:"required,email,max=254"`
	Password  string         `json:"password" validate:"required,min=8,max=128"`
	Role      enums.UserRole `json:"role" validate:"required,oneof=customer vendor"`
	FirstName string         `json:"first_name" validate:"omitempty,max=100"`
	LastName  string         `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string        `json:"phone,omitempty" validate:"omitempty,max=20"`
	TaxID     *string        `json:"tax_id,omitempty" validate:"omitempty,max=40"`
	ClientIP  string         `json:"-"`
}

// LoginRequest is the password step; Identifier is a username or an email.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	ClientIP   string `json:"-"`
}

// LoginChallenge is returned after the password step succeeds.
type LoginChallenge struct {
	ChallengeToken string    `json:"challenge_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	Email          string    `json:"email"`
}

// VerifyOTPRequest finishes a login.
type VerifyOTPRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,numeric,min=4,max=8"`
}

// ResendOTPRequest asks for a fresh code for a pending login.
type ResendOTPRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
}

// RefreshRequest rotates a refresh token. AccessToken may be expired.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair contains the tokens and user produced by a completed login or refresh.
type TokenPair struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
