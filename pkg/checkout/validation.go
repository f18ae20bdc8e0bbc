package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

// AvailabilityInput describes a requested line against what the product offers.
type AvailabilityInput struct {
	ProductID   uuid.UUID
	ProductName string
	Purchasable bool
	Available   int
	Quantity    int
}

// AvailabilityViolation is returned to callers for each line that cannot be filled.
type AvailabilityViolation struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Available    int       `json:"available"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateAvailability ensures every line is purchasable and within stock.
// Quantities below one are rejected outright.
func ValidateAvailability(items []AvailabilityInput) error {
	var violations []AvailabilityViolation
	for _, item := range items {
		if item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		available := item.Available
		if !item.Purchasable {
			available = 0
		}
		if item.Quantity > available {
			violations = append(violations, AvailabilityViolation{
				ProductID:    item.ProductID,
				ProductName:  item.ProductName,
				Available:    available,
				RequestedQty: item.Quantity,
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("not enough stock for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
