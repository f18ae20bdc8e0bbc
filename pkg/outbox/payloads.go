package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// OrderEvent is the data block shared by every order.* event.
type OrderEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	VendorID      uuid.UUID           `json:"vendor_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal     `json:"total"`
	Discount      decimal.Decimal     `json:"discount"`
}

// CardActivatedEvent is emitted when a Sokohub Card becomes usable.
type CardActivatedEvent struct {
	CardID    uuid.UUID `json:"card_id"`
	UserID    uuid.UUID `json:"user_id"`
	VirtualID string    `json:"virtual_id"`
}
