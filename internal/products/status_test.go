package products

import (
	"testing"

	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name  string
		old   enums.ProductStatus
		stock int
		want  enums.ProductStatus
	}{
		{"active sold out", enums.ProductStatusActive, 0, enums.ProductStatusOutOfStock},
		{"active with stock", enums.ProductStatusActive, 4, enums.ProductStatusActive},
		{"restock reactivates", enums.ProductStatusOutOfStock, 1, enums.ProductStatusActive},
		{"still sold out", enums.ProductStatusOutOfStock, 0, enums.ProductStatusOutOfStock},
		{"inactive kept at zero", enums.ProductStatusInactive, 0, enums.ProductStatusInactive},
		{"inactive kept with stock", enums.ProductStatusInactive, 9, enums.ProductStatusInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.old, tc.stock); got != tc.want {
				t.Fatalf("DeriveStatus(%s, %d) = %s, want %s", tc.old, tc.stock, got, tc.want)
			}
		})
	}
}

func TestIsInStock(t *testing.T) {
	if IsInStock(nil) {
		t.Fatal("nil product is never in stock")
	}
	if !IsInStock(&models.Product{Stock: 1, Status: enums.ProductStatusActive}) {
		t.Fatal("active product with stock should be in stock")
	}
	if IsInStock(&models.Product{Stock: 3, Status: enums.ProductStatusInactive}) {
		t.Fatal("inactive product is not purchasable")
	}
	if IsInStock(&models.Product{Stock: 0, Status: enums.ProductStatusActive}) {
		t.Fatal("zero stock is not in stock")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Home & Garden":   "home-garden",
		"  Phones 2024 ":  "phones-2024",
		"Kitchen--Tools!": "kitchen-tools",
		"!!!":             "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
