package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// Product represents a vendor listing.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	CategoryID  *uuid.UUID          `gorm:"column:category_id;type:uuid;index"`
	Name        string              `gorm:"column:name;type:varchar(200);not null"`
	Description string              `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	Status      enums.ProductStatus `gorm:"column:status;type:product_status;not null"`
	ImageURL    *string             `gorm:"column:image_url"`
	Vendor      *User               `gorm:"foreignKey:VendorID"`
	Category    *Category           `gorm:"foreignKey:CategoryID"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
