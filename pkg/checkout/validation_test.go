package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
)

func TestValidateAvailability_NoViolations(t *testing.T) {
	items := []AvailabilityInput{
		{ProductID: uuid.New(), ProductName: "Exact", Purchasable: true, Available: 2, Quantity: 2},
		{ProductID: uuid.New(), ProductName: "Plenty", Purchasable: true, Available: 40, Quantity: 1},
	}
	if err := ValidateAvailability(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateAvailability_Violations(t *testing.T) {
	short := uuid.New()
	hidden := uuid.New()
	items := []AvailabilityInput{
		{ProductID: short, ProductName: "Short", Purchasable: true, Available: 3, Quantity: 5},
		{ProductID: hidden, ProductName: "Inactive", Purchasable: false, Available: 9, Quantity: 1},
		{ProductID: uuid.New(), ProductName: "Fine", Purchasable: true, Available: 9, Quantity: 1},
	}

	err := ValidateAvailability(items)
	if err == nil {
		t.Fatal("expected violation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]AvailabilityViolation)
	if !ok || len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %#v", details["violations"])
	}
	if violations[0].ProductID != short || violations[0].Available != 3 {
		t.Fatalf("unexpected first violation %#v", violations[0])
	}
	if violations[1].ProductID != hidden || violations[1].Available != 0 {
		t.Fatalf("inactive product should report zero available, got %#v", violations[1])
	}
}

func TestValidateAvailability_RejectsZeroQuantity(t *testing.T) {
	err := ValidateAvailability([]AvailabilityInput{{ProductID: uuid.New(), Purchasable: true, Available: 1}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
