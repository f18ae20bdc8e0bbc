package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/internal/orders"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

// Input is what the customer supplies at checkout.
type Input struct {
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required,oneof=wallet external"`
	DeliveryAddress string              `json:"delivery_address" validate:"required,max=500"`
	Phone           string              `json:"phone" validate:"required,max=20"`
}

// ProductInput is the body of the buy-now endpoint.
type ProductInput struct {
	Input
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (in *Input) normalize() error {
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.Phone = strings.TrimSpace(in.Phone)

	var problems []fieldError
	if !in.PaymentMethod.IsValid() {
		problems = append(problems, fieldError{Field: "payment_method", Message: "must be wallet or external"})
	}
	if in.DeliveryAddress == "" {
		problems = append(problems, fieldError{Field: "delivery_address", Message: "required"})
	}
	if in.Phone == "" || len(in.Phone) > 20 {
		problems = append(problems, fieldError{Field: "phone", Message: "required, at most 20 characters"})
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout details").WithDetails(problems)
}

// Result summarises the orders one checkout produced.
type Result struct {
	Orders        []orders.OrderDTO   `json:"orders"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	TransactionID *string             `json:"transaction_id,omitempty"`
}
