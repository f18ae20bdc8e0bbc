package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Phone       *string        `json:"phone,omitempty"`
	TaxID       *string        `json:"tax_id,omitempty"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	Email        string
	PasswordHash string
	Role         enums.UserRole
	FirstName    string
	LastName     string
	Phone        *string
	TaxID        *string
}

// ProfileUpdate carries the self-service editable fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	TaxID     *string `json:"tax_id" validate:"omitempty,max=40"`
}

func (p ProfileUpdate) columns() map[string]any {
	cols := map[string]any{}
	if p.FirstName != nil {
		cols["first_name"] = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		cols["last_name"] = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		cols["phone"] = nullable(*p.Phone)
	}
	if p.TaxID != nil {
		cols["tax_id"] = nullable(*p.TaxID)
	}
	return cols
}

func nullable(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		TaxID:       u.TaxID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     strings.TrimSpace(c.Username),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Role:         c.Role,
		FirstName:    strings.TrimSpace(c.FirstName),
		LastName:     strings.TrimSpace(c.LastName),
		Phone:        c.Phone,
		TaxID:        c.TaxID,
		IsActive:     true,
	}
}

// NormalizeEmail is the canonical stored form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
