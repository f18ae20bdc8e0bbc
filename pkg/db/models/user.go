package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Username     string         `gorm:"column:username;type:varchar(150);not null;uniqueIndex"`
	Email        string         `gorm:"column:email;type:varchar(254);not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Role         enums.UserRole `gorm:"column:role;type:user_role;not null"`
	FirstName    string         `gorm:"column:first_name;not null;default:''"`
	LastName     string         `gorm:"column:last_name;not null;default:''"`
	Phone        *string        `gorm:"column:phone"`
	TaxID        *string        `gorm:"column:tax_id"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
