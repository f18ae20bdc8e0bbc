package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

type inventorySummarizer interface {
	VendorSummary(ctx context.Context, vendorID uuid.UUID) (*products.VendorSummary, error)
}

type orderCounter interface {
	VendorCounts(ctx context.Context, vendorID uuid.UUID) (map[enums.OrderStatus]int64, error)
}

type vendorDashboardResponse struct {
	Inventory *products.VendorSummary     `json:"inventory"`
	Orders    map[enums.OrderStatus]int64 `json:"orders"`
}

// VendorDashboard combines inventory and order counters for the calling vendor.
func VendorDashboard(inventory inventorySummarizer, orderSvc orderCounter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if inventory == nil || orderSvc == nil {
			unavailable(w, r, logg, "dashboard")
			return
		}
		vendorID, ok := callerID(w, r, logg)
		if !ok {
			return
		}

		summary, err := inventory.VendorSummary(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := orderSvc.VendorCounts(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, vendorDashboardResponse{Inventory: summary, Orders: counts})
	}
}
