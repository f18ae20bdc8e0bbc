package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     int64               `json:"order_number,string"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	VendorID        uuid.UUID           `json:"vendor_id"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	Status          enums.OrderStatus   `json:"status"`
	DeliveryAddress string              `json:"delivery_address"`
	Phone           string              `json:"phone"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	TransactionID   *string             `json:"transaction_id,omitempty"`
	Items           []OrderItemDTO      `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	ApprovedAt      *time.Time          `json:"approved_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// OrderItemDTO is one snapshot line of an order.
type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// NewOrderDTO maps an order with its items.
func NewOrderDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		VendorID:        order.VendorID,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Total:           order.Total,
		Status:          order.Status,
		DeliveryAddress: order.DeliveryAddress,
		Phone:           order.Phone,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		TransactionID:   order.TransactionID,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
		PaidAt:          order.PaidAt,
		ApprovedAt:      order.ApprovedAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.LineTotal(),
		})
	}
	return dto
}

// OrderList is one cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ListParams filters an order listing.
type ListParams struct {
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ReceiptDTO is the customer-facing receipt.
type ReceiptDTO struct {
	ReceiptNumber string               `json:"receipt_number"`
	OrderID       uuid.UUID            `json:"order_id"`
	Total         decimal.Decimal      `json:"total"`
	Lines         []models.ReceiptLine `json:"lines"`
	IssuedAt      time.Time            `json:"issued_at"`
}

func newReceiptDTO(receipt *models.Receipt) (*ReceiptDTO, error) {
	var lines []models.ReceiptLine
	if err := json.Unmarshal(receipt.Lines, &lines); err != nil {
		return nil, err
	}
	return &ReceiptDTO{
		ReceiptNumber: receipt.ReceiptNumber,
		OrderID:       receipt.OrderID,
		Total:         receipt.Total,
		Lines:         lines,
		IssuedAt:      receipt.IssuedAt,
	}, nil
}

// Actor identifies who performs an order action.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// owns reports whether the actor is a party to the order in their role.
func (a Actor) owns(order *models.Order) bool {
	switch a.Role {
	case enums.UserRoleCustomer:
		return order.CustomerID == a.UserID
	case enums.UserRoleVendor:
		return order.VendorID == a.UserID
	}
	return false
}

// counterpart is the party notified about the actor's change.
func (a Actor) counterpart(order *models.Order) (uuid.UUID, string) {
	if a.Role == enums.UserRoleVendor {
		return order.CustomerID, customerOrderURL(order.ID)
	}
	return order.VendorID, vendorOrderURL(order.ID)
}

func customerOrderURL(id uuid.UUID) string { return "/orders/" + id.String() }

func vendorOrderURL(id uuid.UUID) string { return "/vendor/orders/" + id.String() }
