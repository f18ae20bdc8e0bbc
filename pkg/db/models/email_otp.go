package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailOTP is a one-time login code delivered by email.
type EmailOTP struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email      string     `gorm:"column:email;type:varchar(254);not null;index:ix_email_otps_email_created,priority:1"`
	Code       string     `gorm:"column:code;type:varchar(10);not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;index:ix_email_otps_email_created,priority:2"`
	ConsumedAt *time.Time `gorm:"column:consumed_at"`
}

func (o *EmailOTP) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
