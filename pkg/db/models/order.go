package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// Order is a customer purchase scoped to exactly one vendor.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     int64               `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	DeliveryAddress string              `gorm:"column:delivery_address;not null"`
	Phone           string              `gorm:"column:phone;type:varchar(20);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	TransactionID   *string             `gorm:"column:transaction_id;type:varchar(64)"`
	StockRestored   bool                `gorm:"column:stock_restored;not null;default:false"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	ApprovedAt      *time.Time          `gorm:"column:approved_at"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem snapshots the product and unit price at purchase time. A product
// can appear twice in one order when a discount cent splits its units.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product_price"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product_price"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;uniqueIndex:ux_order_items_order_product_price"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
