package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Promotion marks a calendar day on which card holders get a discount.
type Promotion struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Day         time.Time `gorm:"column:day;type:date;not null;uniqueIndex"`
	Description string    `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
