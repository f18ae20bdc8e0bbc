package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Receipt is issued once a vendor approves a paid order.
type Receipt struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ReceiptNumber string          `gorm:"column:receipt_number;type:varchar(40);not null;uniqueIndex"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Lines         datatypes.JSON  `gorm:"column:lines;type:jsonb;not null"`
	IssuedAt      time.Time       `gorm:"column:issued_at;not null"`
}

func (r *Receipt) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// ReceiptLine is the JSON shape stored in Receipt.Lines.
type ReceiptLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
