package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// SokohubCard is the prepaid wallet held by a user.
type SokohubCard struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Status     enums.CardStatus `gorm:"column:status;type:card_status;not null"`
	Balance    decimal.Decimal  `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	IsActive   bool             `gorm:"column:is_active;not null;default:false"`
	CardNumber *string          `gorm:"column:card_number;type:varchar(16);uniqueIndex"`
	VirtualID  *string          `gorm:"column:virtual_id;type:varchar(12);uniqueIndex"`
	ApprovedAt *time.Time       `gorm:"column:approved_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *SokohubCard) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Usable reports whether the card may fund a checkout.
func (c SokohubCard) Usable() bool {
	return c.Status == enums.CardStatusApproved && c.IsActive
}

// CardTransaction is an append-only ledger row for balance movements.
type CardTransaction struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CardID       uuid.UUID                 `gorm:"column:card_id;type:uuid;not null;index" json:"card_id"`
	Type         enums.CardTransactionType `gorm:"column:type;type:card_transaction_type;not null" json:"type"`
	Amount       decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal           `gorm:"column:balance_after;type:numeric(12,2);not null" json:"balance_after"`
	Reference    *string                   `gorm:"column:reference;type:varchar(64)" json:"reference,omitempty"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (t *CardTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
