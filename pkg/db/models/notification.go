package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is an append-only message for a user; only ReadAt changes.
type Notification struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Message   string     `gorm:"column:message;not null" json:"message"`
	TargetURL *string    `gorm:"column:target_url" json:"target_url,omitempty"`
	ReadAt    *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
