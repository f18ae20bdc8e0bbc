package enums

import "fmt"

// OrderStatus tracks the lifecycle of a vendor-scoped order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusApproved,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// CancellableOrderStatuses lists the states an order may be cancelled from.
var CancellableOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusApproved,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanBeCancelled reports whether a cancel transition is allowed.
func (s OrderStatus) CanBeCancelled() bool {
	for _, candidate := range CancellableOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanBeApproved reports whether a vendor may approve the order.
func (s OrderStatus) CanBeApproved() bool {
	return s == OrderStatusPaid
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
